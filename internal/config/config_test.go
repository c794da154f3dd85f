package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	cfg.Database.DSN = "host=localhost dbname=stenograf"
	return &cfg
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, 8080, v.GetInt("server.port"))
	assert.Equal(t, "postgres", v.GetString("database.driver"))
	assert.Equal(t, 30*time.Second, v.GetDuration("search.timeout"))
	assert.Equal(t, 120*time.Second, v.GetDuration("search.bulk_timeout"))
	assert.Equal(t, 300*time.Second, v.GetDuration("search.task_poll_timeout"))
	assert.Equal(t, 0.5, v.GetFloat64("search.hybrid_ratio"))
	assert.Equal(t, 4, v.GetInt("ingest.max_concurrent"))
	assert.Equal(t, 500, v.GetInt("sync.batch_size"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "invalid driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "hybrid ratio out of range",
			mutate:  func(c *Config) { c.Search.HybridRatio = 1.5 },
			wantErr: "hybrid_ratio",
		},
		{
			name:    "concurrency too high",
			mutate:  func(c *Config) { c.Ingest.MaxConcurrent = 11 },
			wantErr: "max_concurrent",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Sync.BatchSize = 0 },
			wantErr: "batch_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLegacyAliases(t *testing.T) {
	t.Setenv("MEILISEARCH_URL", "http://legacy:7700")
	t.Setenv("MEILISEARCH_MASTER_KEY", "legacy-key")

	cfg := defaultTestConfig()
	resolveLegacyAliases(cfg)

	assert.Equal(t, "http://legacy:7700", cfg.Search.Host)
	assert.Equal(t, "legacy-key", cfg.Search.MasterKey)
}

func TestLegacyAliasesDoNotOverride(t *testing.T) {
	t.Setenv("MEILISEARCH_URL", "http://legacy:7700")

	cfg := defaultTestConfig()
	cfg.Search.Host = "http://primary:7700"
	resolveLegacyAliases(cfg)

	assert.Equal(t, "http://primary:7700", cfg.Search.Host)
}

func TestEngineConfigured(t *testing.T) {
	cfg := defaultTestConfig()
	assert.False(t, cfg.Search.EngineConfigured())

	cfg.Search.Host = "http://localhost:7700"
	assert.True(t, cfg.Search.EngineConfigured())
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", s.Address())
}
