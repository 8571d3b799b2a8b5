package storage

import (
	"strings"

	"github.com/tidwall/buntdb"

	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// BuntStorage is the optional embedded on-disk backend. It persists a
// single flat file under the table:key namespacing rule; there is no
// separate metadata file.
type BuntStorage struct {
	db *buntdb.DB
}

// OpenBunt opens (creating if absent) the on-disk store at path. Passing
// ":memory:" opens a non-persistent in-memory instance, useful for tests
// that want BuntStorage's exact semantics without a file.
func OpenBunt(path string) (*BuntStorage, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, kverrors.NewStorageError("open buntdb at "+path, err)
	}
	return &BuntStorage{db: db}, nil
}

func (b *BuntStorage) Close() error {
	return b.db.Close()
}

func (b *BuntStorage) Get(table, key string) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)

	var raw string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(ck)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return kvpb.Value{}, false, nil
	}
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("buntdb get", err)
	}

	v, err := kvpb.UnmarshalValue([]byte(raw))
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("decode stored value", err)
	}
	return v, true, nil
}

func (b *BuntStorage) Set(table, key string, value kvpb.Value) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)
	encoded := string(value.Marshal(nil))

	var (
		prevRaw string
		had     bool
	)
	err := b.db.Update(func(tx *buntdb.Tx) error {
		p, replaced, err := tx.Set(ck, encoded, nil)
		if err != nil {
			return err
		}
		prevRaw, had = p, replaced
		return nil
	})
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("buntdb set", err)
	}
	if !had {
		return kvpb.Value{}, false, nil
	}

	prev, err := kvpb.UnmarshalValue([]byte(prevRaw))
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("decode previous value", err)
	}
	return prev, true, nil
}

func (b *BuntStorage) Contains(table, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ck := compositeKey(table, key)
	err := b.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(ck)
		return err
	})
	if err == buntdb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, kverrors.NewStorageError("buntdb contains", err)
	}
	return true, nil
}

func (b *BuntStorage) Del(table, key string) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)

	var prevRaw string
	err := b.db.Update(func(tx *buntdb.Tx) error {
		p, err := tx.Delete(ck)
		if err != nil {
			return err
		}
		prevRaw = p
		return nil
	})
	if err == buntdb.ErrNotFound {
		return kvpb.Value{}, false, nil
	}
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("buntdb del", err)
	}

	prev, err := kvpb.UnmarshalValue([]byte(prevRaw))
	if err != nil {
		return kvpb.Value{}, false, kverrors.NewStorageError("decode deleted value", err)
	}
	return prev, true, nil
}

func (b *BuntStorage) GetAll(table string) ([]kvpb.Kvpair, error) {
	prefix := table + Separator
	var (
		out []kvpb.Kvpair
		err error
	)
	viewErr := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, v string) bool {
			val, decErr := kvpb.UnmarshalValue([]byte(v))
			if decErr != nil {
				err = kverrors.NewStorageError("decode stored value", decErr)
				return false
			}
			out = append(out, kvpb.NewKvpair(strings.TrimPrefix(k, prefix), val))
			return true
		})
	})
	if viewErr != nil {
		return nil, kverrors.NewStorageError("buntdb scan", viewErr)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BuntStorage) GetIter(table string) (Iterator, error) {
	pairs, err := b.GetAll(table)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{pairs: pairs, idx: -1}, nil
}
