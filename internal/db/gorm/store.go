// Package gorm provides the GORM-backed session registry.
package gorm

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // database/sql driver used by the sqlite dialector
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is an open registry database.
type Store struct {
	DB      *gorm.DB
	sqlDB   *sql.DB
	dialect string
}

// Config holds database configuration.
type Config struct {
	// DSN is sqlite://<path>, a bare file path, or postgres://...
	DSN      string
	MaxConns int
	LogLevel logger.LogLevel
}

// NewStore opens the database named by cfg.DSN and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}
	gcfg := &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	}

	var (
		db      *gorm.DB
		sqlDB   *sql.DB
		dialect string
		err     error
	)
	switch {
	case strings.HasPrefix(cfg.DSN, "postgres://"), strings.HasPrefix(cfg.DSN, "postgresql://"):
		dialect = "postgres"
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
	default:
		dialect = "sqlite"
		path := strings.TrimPrefix(cfg.DSN, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("empty database path")
		}
		sqlDB, err = sql.Open("sqlite3", path+"?_foreign_keys=ON")
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db, err = gorm.Open(sqlite.Dialector{Conn: sqlDB}, gcfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("open gorm: %w", err)
		}
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{DB: db, sqlDB: sqlDB, dialect: dialect}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if dialect == "sqlite" {
		// busy_timeout lets concurrent writers wait instead of failing with SQLITE_BUSY
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := sqlDB.Exec(pragma); err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.dialect
}
