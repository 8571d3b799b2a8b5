// Package storage defines the Storage contract every backend honors:
// uniform get/set/contains/del/scan over (table, key) -> Value.
package storage

import (
	"strings"

	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// Separator joins table and key into the flat-namespace composite key a
// backend actually stores. A conservative implementation rejects logical
// keys containing it rather than risk cross-table aliasing.
const Separator = ":"

// Storage is the contract every backend (in-memory, on-disk) honors. All
// methods are synchronous from the caller's perspective.
type Storage interface {
	Get(table, key string) (kvpb.Value, bool, error)
	Set(table, key string, value kvpb.Value) (kvpb.Value, bool, error)
	Contains(table, key string) (bool, error)
	Del(table, key string) (kvpb.Value, bool, error)
	GetAll(table string) ([]kvpb.Kvpair, error)
	// GetIter returns a forward-only, restartable-no iterator over a
	// table's pairs, for backends that can stream rather than snapshot.
	GetIter(table string) (Iterator, error)
}

// Iterator yields pairs one at a time. Next returns false once exhausted
// or on error; callers must check Err after a false Next.
type Iterator interface {
	Next() bool
	Pair() kvpb.Kvpair
	Err() error
	Close() error
}

// ValidateKey rejects logical keys that would alias across tables once
// joined with Separator.
func ValidateKey(key string) error {
	if strings.Contains(key, Separator) {
		return &kverrors.InvalidKey{Key: key}
	}
	return nil
}

func compositeKey(table, key string) string {
	return table + Separator + key
}
