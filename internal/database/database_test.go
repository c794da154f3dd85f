package database

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}
}

func TestNew_Sqlite(t *testing.T) {
	db, err := New(testConfig(), slog.Default())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Driver = "oracle"
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrate(t *testing.T) {
	db, err := New(testConfig(), slog.Default())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	for _, table := range []string{"videos", "speakers", "topics", "transcript_segments", "segment_topics"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestEnsureSearchIndexes_NoopOffPostgres(t *testing.T) {
	db, err := New(testConfig(), slog.Default())
	require.NoError(t, err)
	defer db.Close()

	// Trigram/FTS DDL is postgres-only and must not error elsewhere.
	assert.NoError(t, db.EnsureSearchIndexes(context.Background()))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormLogLevel("silent"), gormLogLevel("silent"))
	assert.NotEqual(t, gormLogLevel("info"), gormLogLevel("error"))
	// Unknown levels default to warn.
	assert.Equal(t, gormLogLevel("bogus"), gormLogLevel("warn"))
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	out := truncateSQL(string(long))
	assert.Len(t, out, maxSQLLogLength+len("... (truncated)"))
}
