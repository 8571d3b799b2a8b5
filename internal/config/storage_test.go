package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/internal/config"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

func TestOpenStorageDefaultsToMemTable(t *testing.T) {
	store, closeFn, err := config.OpenStorage(config.StorageConfig{})
	require.NoError(t, err)
	defer closeFn()

	_, had, err := store.Set("t", "k", kvpb.StringValue("v"))
	require.NoError(t, err)
	assert.False(t, had)
}

func TestOpenStorageOpensBuntInMemory(t *testing.T) {
	store, closeFn, err := config.OpenStorage(config.StorageConfig{Backend: "bunt"})
	require.NoError(t, err)
	defer closeFn()

	assert.NotNil(t, store)
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	_, _, err := config.OpenStorage(config.StorageConfig{Backend: "nope"})
	assert.Error(t, err)
}
