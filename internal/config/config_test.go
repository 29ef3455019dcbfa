package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/origindb/origindb/internal/storage/backingstore/leveldb"
)

func TestDefaultConfigValidates(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "leveldb", config.Storage.Driver)
	assert.Equal(t, 2*time.Second, config.Storage.GracePeriod())
	assert.Equal(t, "lz4", config.Storage.Compressor)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty driver", func(c *Config) { c.Storage.Driver = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "rocksdb" }},
		{"negative grace period", func(c *Config) { c.Storage.GracePeriodMS = -1 }},
		{"negative cache size", func(c *Config) { c.Storage.CacheSize = -1 }},
		{"compression level too high", func(c *Config) { c.Storage.CompressionLevel = 10 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir := t.TempDir()
	content := `
storage:
  driver: leveldb
  path: /var/lib/origindb
  grace_period_ms: 500
  cache_size: 100
log:
  level: debug
  format: json
`
	path := filepath.Join(tempDir, "origindb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/origindb", config.Storage.Path)
	assert.Equal(t, 500*time.Millisecond, config.Storage.GracePeriod())
	assert.Equal(t, 100, config.Storage.CacheSize)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)

	// Values the file does not set keep their defaults.
	assert.Equal(t, "lz4", config.Storage.Compressor)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ORIGINDB_STORAGE_DRIVER", "leveldb")
	t.Setenv("ORIGINDB_STORAGE_GRACE_PERIOD_MS", "1500")
	t.Setenv("ORIGINDB_LOG_FORMAT", "json")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 1500, config.Storage.GracePeriodMS)
	assert.Equal(t, "json", config.Log.Format)
}

func TestLoadConfigInvalidFileRejected(t *testing.T) {
	tempDir := t.TempDir()
	content := `
storage:
  driver: nonexistent
`
	path := filepath.Join(tempDir, "origindb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestBackingStoreOptions(t *testing.T) {
	config := DefaultConfig()
	opts := config.BackingStoreOptions()

	assert.Equal(t, config.Storage.CacheSize, opts.CacheSize)
	assert.Equal(t, config.Storage.Compressor, opts.Compressor)
	assert.Equal(t, config.Storage.CompressionLevel, opts.CompressionLevel)
}
