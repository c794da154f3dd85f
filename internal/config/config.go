// Package config provides configuration management for stenograf using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultEngineTimeout     = 30 * time.Second
	defaultEngineBulkTimeout = 120 * time.Second
	defaultTaskPollTimeout   = 300 * time.Second
	defaultTaskPollInterval  = 2 * time.Second
	defaultHybridRatio       = 0.5
	defaultMaxSearchResults  = 1000
	defaultPageSize          = 20

	defaultSyncBatchSize = 500

	defaultIngestConcurrency = 4
	maxIngestConcurrency     = 10
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// SearchConfig holds search engine (Meilisearch) configuration.
type SearchConfig struct {
	Host      string        `mapstructure:"host"`
	MasterKey string        `mapstructure:"master_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// BulkTimeout applies to bulk document POSTs, which can be large.
	BulkTimeout      time.Duration `mapstructure:"bulk_timeout"`
	TaskPollTimeout  time.Duration `mapstructure:"task_poll_timeout"`
	TaskPollInterval time.Duration `mapstructure:"task_poll_interval"`
	// HybridRatio is the semantic weight used for hybrid queries (0.0-1.0).
	HybridRatio      float64 `mapstructure:"hybrid_ratio"`
	MaxSearchResults int     `mapstructure:"max_search_results"`
	DefaultPageSize  int     `mapstructure:"default_page_size"`
	// OpenAIKey enables the semantic embedder during index init when set.
	OpenAIKey string `mapstructure:"openai_key"`
	// SettingsFile optionally points at a YAML file with synonyms and
	// stopwords keyed by language code.
	SettingsFile string `mapstructure:"settings_file"`
}

// IngestConfig holds transcript ingestion configuration.
type IngestConfig struct {
	HTMLDataDir   string `mapstructure:"html_data_dir"`
	XMLDataDir    string `mapstructure:"xml_data_dir"`
	UploadDir     string `mapstructure:"upload_dir"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// SyncConfig holds search index synchronisation configuration.
type SyncConfig struct {
	// StateFile is the JSON watermark file written after successful runs.
	StateFile string `mapstructure:"state_file"`
	BatchSize int    `mapstructure:"batch_size"`
	// Schedule is an optional cron expression for periodic incremental sync
	// inside `serve`. Empty disables scheduling.
	Schedule string `mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with STENOGRAF_, using underscores for nesting.
// Example: STENOGRAF_SEARCH_HOST=http://localhost:7700.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stenograf")
		v.AddConfigPath("$HOME/.stenograf")
	}

	v.SetEnvPrefix("STENOGRAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	resolveLegacyAliases(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// resolveLegacyAliases honors the MEILISEARCH_URL / MEILISEARCH_MASTER_KEY
// environment variables when the primary names are unset. Aliases are
// resolved once at load time, never at use time.
func resolveLegacyAliases(cfg *Config) {
	if cfg.Search.Host == "" {
		if legacy := os.Getenv("MEILISEARCH_URL"); legacy != "" {
			cfg.Search.Host = legacy
		}
	}
	if cfg.Search.MasterKey == "" {
		if legacy := os.Getenv("MEILISEARCH_MASTER_KEY"); legacy != "" {
			cfg.Search.MasterKey = legacy
		}
	}
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Search engine defaults
	v.SetDefault("search.host", "")
	v.SetDefault("search.master_key", "")
	v.SetDefault("search.timeout", defaultEngineTimeout)
	v.SetDefault("search.bulk_timeout", defaultEngineBulkTimeout)
	v.SetDefault("search.task_poll_timeout", defaultTaskPollTimeout)
	v.SetDefault("search.task_poll_interval", defaultTaskPollInterval)
	v.SetDefault("search.hybrid_ratio", defaultHybridRatio)
	v.SetDefault("search.max_search_results", defaultMaxSearchResults)
	v.SetDefault("search.default_page_size", defaultPageSize)
	v.SetDefault("search.openai_key", "")
	v.SetDefault("search.settings_file", "")

	// Ingest defaults
	v.SetDefault("ingest.html_data_dir", "./data/html")
	v.SetDefault("ingest.xml_data_dir", "./data/xml")
	v.SetDefault("ingest.upload_dir", "./data/uploads")
	v.SetDefault("ingest.max_concurrent", defaultIngestConcurrency)

	// Sync defaults
	v.SetDefault("sync.state_file", "./sync_state.json")
	v.SetDefault("sync.batch_size", defaultSyncBatchSize)
	v.SetDefault("sync.schedule", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Search.HybridRatio < 0 || c.Search.HybridRatio > 1 {
		return fmt.Errorf("search.hybrid_ratio must be between 0.0 and 1.0")
	}

	if c.Ingest.MaxConcurrent < 1 || c.Ingest.MaxConcurrent > maxIngestConcurrency {
		return fmt.Errorf("ingest.max_concurrent must be between 1 and %d", maxIngestConcurrency)
	}

	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EngineConfigured reports whether a search engine host is set. When false,
// query handling falls back to the SQL search path.
func (c *SearchConfig) EngineConfigured() bool {
	return c.Host != ""
}
