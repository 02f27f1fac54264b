package cache

import "time"

// Config contains cache configuration.
type Config struct {
	// MaxSize bounds the number of entries.
	// Default: 200.
	MaxSize int `json:"max_size"`

	// TTL is the default entry lifetime. Zero means entries never expire.
	// Default: 5 minutes.
	TTL time.Duration `json:"ttl"`

	// EnablePersistence writes debounced snapshots to the configured Storage
	// and restores them at construction.
	// Default: false.
	EnablePersistence bool `json:"enable_persistence"`

	// StorageKey names the snapshot in the Storage backend.
	// Default: "themekit-style-cache".
	StorageKey string `json:"storage_key"`

	// CleanupInterval is how often expired entries are swept.
	// Negative disables the sweeper.
	// Default: 60 seconds.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// PersistDebounce is the quiet period before a snapshot is written.
	// Default: 1 second.
	PersistDebounce time.Duration `json:"persist_debounce"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:         200,
		TTL:             5 * time.Minute,
		StorageKey:      "themekit-style-cache",
		CleanupInterval: 60 * time.Second,
		PersistDebounce: time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	if c.StorageKey == "" {
		c.StorageKey = defaults.StorageKey
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	if c.PersistDebounce <= 0 {
		c.PersistDebounce = defaults.PersistDebounce
	}
	return c
}
