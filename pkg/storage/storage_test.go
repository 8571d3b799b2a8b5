package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/storage"
)

func backends(t *testing.T) map[string]storage.Storage {
	bunt, err := storage.OpenBunt(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { bunt.Close() })

	return map[string]storage.Storage{
		"memtable": storage.NewMemTable(4),
		"bunt":     bunt,
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, had, err := s.Set("users", "alice", kvpb.IntValue(1))
			require.NoError(t, err)
			assert.False(t, had)

			v, ok, err := s.Get("users", "alice")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, kvpb.IntValue(1), v)
		})
	}
}

func TestSetReturnsPreviousValue(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Set("users", "alice", kvpb.IntValue(1))
			require.NoError(t, err)

			prev, had, err := s.Set("users", "alice", kvpb.IntValue(2))
			require.NoError(t, err)
			assert.True(t, had)
			assert.Equal(t, kvpb.IntValue(1), prev)
		})
	}
}

func TestGetMissingKeyReportsNotFoundViaOkFlag(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, ok, err := s.Get("users", "ghost")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, kvpb.Value{}, v)
		})
	}
}

func TestDelRemovesKeyAndReturnsPrevious(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Set("users", "alice", kvpb.IntValue(7))
			require.NoError(t, err)

			prev, had, err := s.Del("users", "alice")
			require.NoError(t, err)
			assert.True(t, had)
			assert.Equal(t, kvpb.IntValue(7), prev)

			_, ok, err := s.Get("users", "alice")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestContains(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.Contains("users", "alice")
			require.NoError(t, err)
			assert.False(t, ok)

			_, _, err = s.Set("users", "alice", kvpb.IntValue(1))
			require.NoError(t, err)

			ok, err = s.Contains("users", "alice")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestGetAllScopesToTable(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Set("users", "alice", kvpb.IntValue(1))
			require.NoError(t, err)
			_, _, err = s.Set("users", "bob", kvpb.IntValue(2))
			require.NoError(t, err)
			_, _, err = s.Set("sessions", "alice", kvpb.IntValue(99))
			require.NoError(t, err)

			pairs, err := s.GetAll("users")
			require.NoError(t, err)
			assert.Len(t, pairs, 2)
		})
	}
}

func TestGetIterYieldsAllPairs(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Set("t", "a", kvpb.IntValue(1))
			require.NoError(t, err)
			_, _, err = s.Set("t", "b", kvpb.IntValue(2))
			require.NoError(t, err)

			it, err := s.GetIter("t")
			require.NoError(t, err)
			defer it.Close()

			count := 0
			for it.Next() {
				count++
			}
			require.NoError(t, it.Err())
			assert.Equal(t, 2, count)
		})
	}
}

func TestKeyContainingSeparatorIsRejected(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Set("users", "al:ice", kvpb.IntValue(1))
			var invalidKey *kverrors.InvalidKey
			require.ErrorAs(t, err, &invalidKey)
		})
	}
}
