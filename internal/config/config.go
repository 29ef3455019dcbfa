package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

// Config is the complete origindb configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig configures the backing store layer.
type StorageConfig struct {
	// Driver selects the backing store driver.
	Driver string `mapstructure:"driver"`

	// Path is the data directory for persistent stores. Empty means
	// in-memory, session-only storage.
	Path string `mapstructure:"path"`

	// GracePeriodMS is the delay, in milliseconds, before an
	// unreferenced backing store is closed.
	GracePeriodMS int `mapstructure:"grace_period_ms"`

	// CacheSize is the per-store record cache size in entries.
	CacheSize int `mapstructure:"cache_size"`

	// Compressor selects the record compressor.
	Compressor string `mapstructure:"compressor"`

	// CompressionLevel is passed through to the compressor.
	CompressionLevel int `mapstructure:"compression_level"`
}

// GracePeriod returns the configured grace period as a duration.
func (c StorageConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMS) * time.Millisecond
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:           "leveldb",
			Path:             "./origindb",
			GracePeriodMS:    2000,
			CacheSize:        2000,
			Compressor:       "lz4",
			CompressionLevel: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Storage.Driver == "" {
		return errors.New("storage driver must be specified")
	}
	if !backingstore.IsAvailable(c.Storage.Driver) {
		return fmt.Errorf("unknown storage driver: %s (available: %v)",
			c.Storage.Driver, backingstore.Available())
	}
	if c.Storage.GracePeriodMS < 0 {
		return errors.New("grace_period_ms must be non-negative")
	}
	if c.Storage.CacheSize < 0 {
		return errors.New("cache_size must be non-negative")
	}
	if c.Storage.CompressionLevel < 0 || c.Storage.CompressionLevel > 9 {
		return errors.New("compression_level must be between 0 and 9")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
	return nil
}

// BackingStoreOptions maps the storage section onto driver options.
func (c *Config) BackingStoreOptions() backingstore.Options {
	return backingstore.Options{
		CacheSize:        c.Storage.CacheSize,
		Compressor:       c.Storage.Compressor,
		CompressionLevel: c.Storage.CompressionLevel,
	}
}
