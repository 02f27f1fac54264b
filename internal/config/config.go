// Package config loads themekit configuration from defaults, a YAML file and
// THEMEKIT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencode-ai/themekit/internal/cache"
	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. THEMEKIT_CACHE_MAX_SIZE.
const EnvPrefix = "THEMEKIT"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Registry RegistryConfig `mapstructure:"registry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig mirrors cache.Config.
type CacheConfig struct {
	MaxSize           int           `mapstructure:"max_size"`
	TTL               time.Duration `mapstructure:"ttl"`
	EnablePersistence bool          `mapstructure:"enable_persistence"`
	StorageKey        string        `mapstructure:"storage_key"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	PersistDebounce   time.Duration `mapstructure:"persist_debounce"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// RegistryConfig controls theme discovery and the fallback theme.
type RegistryConfig struct {
	DefaultTheme string   `mapstructure:"default_theme"`
	ThemeDirs    []string `mapstructure:"theme_dirs"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	defaults := cache.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("cache.max_size", defaults.MaxSize)
	v.SetDefault("cache.ttl", defaults.TTL)
	v.SetDefault("cache.enable_persistence", false)
	v.SetDefault("cache.storage_key", defaults.StorageKey)
	v.SetDefault("cache.cleanup_interval", defaults.CleanupInterval)
	v.SetDefault("cache.persist_debounce", defaults.PersistDebounce)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.path", "")

	v.SetDefault("registry.default_theme", "default")
	v.SetDefault("registry.theme_dirs", []string{})

	v.SetDefault("metrics.addr", "127.0.0.1:9464")
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads configuration. An explicit path must exist; without one the
// first config.yaml found in ./.themekit or ~/.config/themekit is used, if any.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".themekit")
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			v.AddConfigPath(filepath.Join(home, ".config", "themekit"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be one of memory, file, sqlite; got %q", c.Storage.Backend)
	}
	return nil
}

// CacheConfig converts the cache section for cache.New.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		MaxSize:           c.Cache.MaxSize,
		TTL:               c.Cache.TTL,
		EnablePersistence: c.Cache.EnablePersistence,
		StorageKey:        c.Cache.StorageKey,
		CleanupInterval:   c.Cache.CleanupInterval,
		PersistDebounce:   c.Cache.PersistDebounce,
	}
}

// ThemeRegistryConfig converts the registry section for theme.NewRegistry.
func (c *Config) ThemeRegistryConfig() theme.RegistryConfig {
	return theme.RegistryConfig{DefaultThemeID: c.Registry.DefaultTheme}
}

// LoggingConfig converts the log section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// StoragePath returns the configured storage path, or a default under the
// user cache directory for the selected backend.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "themekit")
	if c.Storage.Backend == BackendSQLite {
		return filepath.Join(dir, "themekit.db")
	}
	return filepath.Join(dir, "snapshots")
}
