package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-archive-api/pkg/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open connects to the configured driver and applies the schema when requested.
// SQLite databases are always migrated since they are local by nature.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres, "":
		db, err = NewPostgres(ctx, cfg)
		if err == nil {
			configurePool(db, cfg)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate || cfg.Driver == config.DriverSQLite {
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// configurePool sizes a server-backed pool. SQLite keeps the single connection NewSQLite sets.
func configurePool(db *sqlx.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		idle := cfg.MaxIdleConns
		if cfg.MaxOpenConns > 0 && idle > cfg.MaxOpenConns {
			idle = cfg.MaxOpenConns
		}
		db.SetMaxIdleConns(idle)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)
}

// Migrate applies the embedded schema for the connection's dialect. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	name := "schema/postgres.sql"
	if db.DriverName() == "sqlite" {
		name = "schema/sqlite.sql"
	}
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", name, err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema %s: %w", name, err)
		}
	}
	return nil
}
