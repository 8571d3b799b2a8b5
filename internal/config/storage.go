package config

import (
	"fmt"

	"github.com/WiccyCheng/MyKVServer/pkg/storage"
)

// OpenStorage builds the Storage backend the config selects. The returned
// close function is a no-op for the in-memory backend.
func OpenStorage(cfg StorageConfig) (storage.Storage, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemTable(cfg.ShardCount), func() error { return nil }, nil
	case "bunt":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		b, err := storage.OpenBunt(path)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
