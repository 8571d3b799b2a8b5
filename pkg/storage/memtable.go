package storage

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// DefaultShardCount is the shard count used when none is given: a power
// of two so masking replaces modulo on the hot path.
const DefaultShardCount = 64

type memShard struct {
	mu   sync.RWMutex
	rows map[string]kvpb.Value
}

// MemTable is the default in-memory Storage backend: a table:key flat
// namespace sharded by hash so concurrent HSET/HGET against unrelated
// keys never contend on the same lock.
type MemTable struct {
	shards []memShard
	mask   uint64
}

// NewMemTable builds a MemTable with shardCount shards (rounded up to the
// next power of two, minimum 1). Zero uses DefaultShardCount.
func NewMemTable(shardCount int) *MemTable {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	shards := make([]memShard, n)
	for i := range shards {
		shards[i].rows = make(map[string]kvpb.Value)
	}
	return &MemTable{shards: shards, mask: uint64(n - 1)}
}

func (m *MemTable) shardFor(compositeKey string) *memShard {
	h := xxhash.Sum64String(compositeKey)
	return &m.shards[h&m.mask]
}

func (m *MemTable) Get(table, key string) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)
	s := m.shardFor(ck)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rows[ck]
	return v, ok, nil
}

func (m *MemTable) Set(table, key string, value kvpb.Value) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)
	s := m.shardFor(ck)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.rows[ck]
	s.rows[ck] = value
	return prev, had, nil
}

func (m *MemTable) Contains(table, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ck := compositeKey(table, key)
	s := m.shardFor(ck)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[ck]
	return ok, nil
}

func (m *MemTable) Del(table, key string) (kvpb.Value, bool, error) {
	if err := ValidateKey(key); err != nil {
		return kvpb.Value{}, false, err
	}
	ck := compositeKey(table, key)
	s := m.shardFor(ck)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.rows[ck]
	if had {
		delete(s.rows, ck)
	}
	return prev, had, nil
}

func (m *MemTable) GetAll(table string) ([]kvpb.Kvpair, error) {
	prefix := table + Separator
	var out []kvpb.Kvpair
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for ck, v := range s.rows {
			if len(ck) > len(prefix) && ck[:len(prefix)] == prefix {
				out = append(out, kvpb.NewKvpair(ck[len(prefix):], v))
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemTable) GetIter(table string) (Iterator, error) {
	pairs, err := m.GetAll(table)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{pairs: pairs, idx: -1}, nil
}

type sliceIterator struct {
	pairs []kvpb.Kvpair
	idx   int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.pairs)
}

func (it *sliceIterator) Pair() kvpb.Kvpair { return it.pairs[it.idx] }
func (it *sliceIterator) Err() error        { return nil }
func (it *sliceIterator) Close() error      { return nil }
