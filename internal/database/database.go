// Package database provides database connection management for stenograf.
// It supports PostgreSQL, SQLite, and MySQL through GORM; PostgreSQL is the
// production target and the only driver with trigram/full-text indexes.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps a GORM database connection with additional functionality.
type DB struct {
	*gorm.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// New creates a new database connection based on the provided configuration.
func New(cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}

	dialector, err := getDialector(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting dialector: %w", err)
	}

	gormCfg := &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel, log),
		SkipDefaultTransaction: true,
		// TranslateError maps driver-specific unique violations onto
		// gorm.ErrDuplicatedKey, which the repositories surface as
		// models.ErrConflictOnUniqueKey.
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	// Each ingest worker owns its own session, so the pool must be at
	// least workers + headroom for HTTP readers and the sync loop.
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Info("database connection pool configured",
		slog.String("driver", cfg.Driver),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return &DB{DB: db, cfg: cfg, logger: log}, nil
}

// getDialector returns the appropriate GORM dialector for the configured driver.
func getDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += "_pragma=busy_timeout(30000)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=foreign_keys(ON)"
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// AllModels lists every persisted entity in dependency order.
func AllModels() []any {
	return []any{
		&models.Video{},
		&models.Speaker{},
		&models.Topic{},
		&models.TranscriptSegment{},
		&models.SegmentTopic{},
	}
}

// Migrate creates or updates the schema for all models.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.DB.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// ddlAdvisoryLockKey serializes startup DDL across concurrent workers.
const ddlAdvisoryLockKey = 823471

// postgresSearchIndexes is the DDL applied once at startup on PostgreSQL:
// the trigram extension, trigram indexes for case-insensitive partial match,
// and a full-text index over transcript text.
var postgresSearchIndexes = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE INDEX IF NOT EXISTS idx_segments_text_trgm ON transcript_segments USING gin (transcript_text gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_speaker_trgm ON transcript_segments USING gin (speaker_name gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_title_trgm ON videos USING gin (title gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_candidate_trgm ON videos USING gin (candidate gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_format_trgm ON videos USING gin (format gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_place_trgm ON videos USING gin (place gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_topics_name_trgm ON topics USING gin (name gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_text_fts ON transcript_segments USING gin (to_tsvector('english', transcript_text))`,
}

// EnsureSearchIndexes creates the PostgreSQL extension and index set under a
// process-wide advisory lock so concurrent workers do not race on DDL.
// It is a no-op on other drivers.
func (db *DB) EnsureSearchIndexes(ctx context.Context) error {
	if db.cfg.Driver != "postgres" {
		db.logger.Debug("skipping search index DDL", slog.String("driver", db.cfg.Driver))
		return nil
	}

	tx := db.DB.WithContext(ctx)
	if err := tx.Exec(`SELECT pg_advisory_lock(?)`, ddlAdvisoryLockKey).Error; err != nil {
		return fmt.Errorf("acquiring DDL advisory lock: %w", err)
	}
	defer func() {
		if err := tx.Exec(`SELECT pg_advisory_unlock(?)`, ddlAdvisoryLockKey).Error; err != nil {
			db.logger.Warn("releasing DDL advisory lock", slog.String("error", err.Error()))
		}
	}()

	for _, stmt := range postgresSearchIndexes {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("applying search index DDL: %w", err)
		}
	}

	db.logger.Info("search indexes ensured", slog.Int("statements", len(postgresSearchIndexes)))
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.cfg.Driver
}

// Transaction executes a function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.DB.WithContext(ctx).Transaction(fn)
}

// gormLogLevel maps string log levels to GORM logger levels.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// newGormLogger creates a GORM logger that uses slog.
func newGormLogger(level string, log *slog.Logger) *slogGormLogger {
	return &slogGormLogger{logger: log, level: gormLogLevel(level)}
}

// slogGormLogger implements GORM's logger.Interface using slog.
type slogGormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &slogGormLogger{logger: l.logger, level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// slowQueryThreshold defines when a query is considered slow. Bulk segment
// inserts legitimately take a while, so this is generous.
const slowQueryThreshold = 1 * time.Second

// maxSQLLogLength limits SQL string length in logs; interpolated batch
// inserts can be megabytes.
const maxSQLLogLength = 200

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLogLength {
		return sql
	}
	return sql[:maxSQLLogLength] + "... (truncated)"
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	isError := err != nil
	isSlow := elapsed > slowQueryThreshold

	// Skip generating the SQL string unless slog will actually emit it.
	var willLog bool
	switch {
	case isError && l.level >= logger.Error:
		willLog = true
	case isSlow && l.level >= logger.Warn:
		willLog = l.logger.Enabled(ctx, slog.LevelWarn)
	case l.level >= logger.Info:
		willLog = l.logger.Enabled(ctx, slog.LevelDebug)
	}
	if !willLog {
		return
	}

	sqlStr, rows := fc()

	switch {
	case isError:
		l.logger.ErrorContext(ctx, "database error",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case isSlow:
		l.logger.WarnContext(ctx, "slow query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	default:
		l.logger.DebugContext(ctx, "database query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}
