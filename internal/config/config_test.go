package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9527, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 64, cfg.Storage.ShardCount)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("KV_SERVER_PORT", "7000")
	t.Setenv("KV_STORAGE_BACKEND", "bunt")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "bunt", cfg.Storage.Backend)
}

func TestLoadRejectsNonPositiveShardCount(t *testing.T) {
	t.Setenv("KV_STORAGE_SHARD_COUNT", "0")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Storage.ShardCount)
}

func TestServerConfigAddr(t *testing.T) {
	s := config.ServerConfig{Host: "0.0.0.0", Port: 1234}
	assert.Equal(t, "0.0.0.0:1234", s.Addr())
}

func TestMain(m *testing.M) {
	// Isolate from any kvserver.* config file in the working directory.
	_ = os.Chdir(os.TempDir())
	os.Exit(m.Run())
}
