// package database provides postgresql connection management.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blockedby/teamsheet/internal/logger"
	"github.com/blockedby/teamsheet/internal/models"
)

const sqlitePrefix = "sqlite://"

// DB wraps a postgresql connection pool and GORM instance.
// Pool is nil when the database is SQLite.
type DB struct {
	Pool *pgxpool.Pool
	GORM *gorm.DB
}

// New opens the database named by databaseURL. URLs starting with sqlite://
// open a local SQLite file; everything else is treated as postgres.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	if strings.HasPrefix(databaseURL, sqlitePrefix) {
		return NewSQLite(strings.TrimPrefix(databaseURL, sqlitePrefix))
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.Open(databaseURL), gormConfig())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{
		Pool: pool,
		GORM: gormDB,
	}, nil
}

// NewSQLite opens a SQLite database (":memory:" for tests). The pool is capped
// at one connection so in-memory databases are shared by every query.
func NewSQLite(dsn string) (*DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &DB{GORM: gormDB}, nil
}

// AutoMigrate creates or updates every table from the models.
// Used for SQLite; postgres goes through the migrator.
func (db *DB) AutoMigrate() error {
	if err := db.GORM.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// IsSQLite reports whether db is backed by SQLite.
func (db *DB) IsSQLite() bool {
	return db.Pool == nil
}

// Close closes the pool and the GORM connection.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if sqlDB, err := db.GORM.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// gormWriter routes GORM's printf-style output into the global zerolog logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Get().Warn().Str("component", "gorm").Msgf(format, args...)
}
