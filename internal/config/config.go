// Package config loads runtime configuration for the KV server binary via
// viper: typed defaults, an optional config file, environment override.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the KV server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains the network-level settings for the TCP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TLSConfig points at the PEM material the security package loads. A
// missing ClientCAFile means the server performs no client authentication.
type TLSConfig struct {
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	ClientCAFile string `mapstructure:"client_ca_file"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "bunt".
	Backend    string `mapstructure:"backend"`
	ShardCount int    `mapstructure:"shard_count"`
	// Path is the on-disk file bunt opens; ":memory:" for a non-persistent
	// instance with bunt's exact semantics.
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables and an optional
// config file named kvserver.{yaml,json,toml,...} in the current directory
// or ./config.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9527)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.shard_count", 64)
	v.SetDefault("storage.path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9528")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("kvserver")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("KV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Storage.ShardCount <= 0 {
		cfg.Storage.ShardCount = 64
	}

	return cfg, nil
}
