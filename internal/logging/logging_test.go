package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/internal/config"
	"github.com/WiccyCheng/MyKVServer/internal/logging"
)

func TestNewBuildsLoggerAtRequestedLevel(t *testing.T) {
	logger, err := logging.New(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := logging.New(config.LoggingConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
