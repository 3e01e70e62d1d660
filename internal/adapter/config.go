package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrConflictingIntegrations is returned when more than one payment
// integration is configured for the same app.
var ErrConflictingIntegrations = errors.New("both cleeng and inplayer integrations are configured")

// Storage backends
const (
	StorageBolt   = "bolt"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Broadcast transports
const (
	TransportLocal = "local"
	TransportRedis = "redis"
	TransportNone  = "none"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	API       APIConfig       `mapstructure:"api"`
	Shelves   ShelvesConfig   `mapstructure:"shelves"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig identifies the deployed app
type AppConfig struct {
	ID            string             `mapstructure:"id"`             // Namespaces persisted shelf keys
	StoragePrefix string             `mapstructure:"storage_prefix"` // Prefix for every stored key
	Features      FeaturesConfig     `mapstructure:"features"`
	Integrations  IntegrationsConfig `mapstructure:"integrations"`
}

// FeaturesConfig switches the personal shelves on or off
type FeaturesConfig struct {
	Favorites        bool `mapstructure:"favorites"`
	ContinueWatching bool `mapstructure:"continue_watching"`
}

// IntegrationsConfig holds the payment integration settings.
// At most one integration may be configured.
type IntegrationsConfig struct {
	Cleeng   CleengConfig   `mapstructure:"cleeng"`
	InPlayer InPlayerConfig `mapstructure:"inplayer"`
}

type CleengConfig struct {
	PublisherID  string `mapstructure:"publisher_id"`
	MonthlyOffer string `mapstructure:"monthly_offer"`
}

type InPlayerConfig struct {
	ClientID string `mapstructure:"client_id"`
	AssetID  string `mapstructure:"asset_id"`
}

// StorageConfig selects the key-value backend
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // bolt, file, redis or memory
	Path    string      `mapstructure:"path"`    // Directory for bolt and file backends
	Redis   RedisConfig `mapstructure:"redis"`
}

// BroadcastConfig selects the cross-instance transport
type BroadcastConfig struct {
	Transport string      `mapstructure:"transport"` // local, redis or none
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// APIConfig holds REST API settings
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// ShelvesConfig holds personal shelf policy
type ShelvesConfig struct {
	MaxFavorites int           `mapstructure:"max_favorites"`
	MaxHistory   int           `mapstructure:"max_history"`
	ProgressMin  float64       `mapstructure:"progress_min"`
	ProgressMax  float64       `mapstructure:"progress_max"`
	SyncTimeout  time.Duration `mapstructure:"sync_timeout"`
}

// WorkersConfig sizes the background worker pool
type WorkersConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"` // Empty logs to stderr
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			StoragePrefix: "jwapp",
			Features: FeaturesConfig{
				Favorites:        true,
				ContinueWatching: true,
			},
		},
		Storage: StorageConfig{
			Backend: StorageBolt,
			Path:    defaultDataPath(),
		},
		Broadcast: BroadcastConfig{
			Transport: TransportLocal,
		},
		API: APIConfig{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 20,
			MaxRetries:        3,
		},
		Shelves: ShelvesConfig{
			MaxFavorites: 48,
			MaxHistory:   48,
			ProgressMin:  0.05,
			ProgressMax:  0.95,
			SyncTimeout:  10 * time.Second,
		},
		Workers: WorkersConfig{
			PoolSize: 8,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default storage directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "ottsync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "ottsync")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "ottsync")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "ottsync")
	}
}

// Validate rejects configurations the app cannot run with
func (c *Config) Validate() error {
	if c.App.Integrations.Cleeng.PublisherID != "" && c.App.Integrations.InPlayer.ClientID != "" {
		return ErrConflictingIntegrations
	}

	switch c.Storage.Backend {
	case StorageBolt, StorageFile, StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Broadcast.Transport {
	case TransportLocal, TransportNone:
	case TransportRedis:
		if c.Broadcast.Redis.Addr == "" {
			return fmt.Errorf("broadcast.redis.addr is required for the redis transport")
		}
	default:
		return fmt.Errorf("unknown broadcast transport %q", c.Broadcast.Transport)
	}

	if c.Shelves.ProgressMin >= c.Shelves.ProgressMax {
		return fmt.Errorf("shelves.progress_min must be below shelves.progress_max")
	}
	return nil
}

// Loader reads configuration from file and environment
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader. An empty path searches the default locations
// for config.yaml.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides (OTTSYNC_API_BASE_URL etc.)
	v.SetEnvPrefix("OTTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads and validates the configuration
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.bindDefaults(cfg)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Invalid edits are reported through onError and ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := DefaultConfig()
		if err := l.v.Unmarshal(cfg); err != nil {
			onError(fmt.Errorf("error parsing config: %w", err))
			return
		}
		if err := cfg.Validate(); err != nil {
			onError(fmt.Errorf("invalid config: %w", err))
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile returns the file the configuration was read from, if any
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// bindDefaults registers every key so environment overrides apply even
// when the config file does not mention them.
func (l *Loader) bindDefaults(cfg *Config) {
	v := l.v
	v.SetDefault("app.id", cfg.App.ID)
	v.SetDefault("app.storage_prefix", cfg.App.StoragePrefix)
	v.SetDefault("app.features.favorites", cfg.App.Features.Favorites)
	v.SetDefault("app.features.continue_watching", cfg.App.Features.ContinueWatching)
	v.SetDefault("app.integrations.cleeng.publisher_id", "")
	v.SetDefault("app.integrations.cleeng.monthly_offer", "")
	v.SetDefault("app.integrations.inplayer.client_id", "")
	v.SetDefault("app.integrations.inplayer.asset_id", "")

	for _, section := range []string{"storage", "broadcast"} {
		v.SetDefault(section+".redis.addr", "")
		v.SetDefault(section+".redis.password", "")
		v.SetDefault(section+".redis.db", 0)
		v.SetDefault(section+".redis.key_prefix", "")
	}
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("broadcast.transport", cfg.Broadcast.Transport)

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.requests_per_second", cfg.API.RequestsPerSecond)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)

	v.SetDefault("shelves.max_favorites", cfg.Shelves.MaxFavorites)
	v.SetDefault("shelves.max_history", cfg.Shelves.MaxHistory)
	v.SetDefault("shelves.progress_min", cfg.Shelves.ProgressMin)
	v.SetDefault("shelves.progress_max", cfg.Shelves.ProgressMax)
	v.SetDefault("shelves.sync_timeout", cfg.Shelves.SyncTimeout)

	v.SetDefault("workers.pool_size", cfg.Workers.PoolSize)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}
