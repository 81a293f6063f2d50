// Package sqlstore keeps evaluations and recorded results in SQL through bun.
// Postgres backs deployments; a SQLite file backs local runs.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	pgmigrations "evaluation-service/internal/infra/postgres/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to dsn with the dialect matching driver.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres, "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:evaluations.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one connection keeps writers serialized and in-memory databases alive
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q (expected postgres or sqlite)", driver)
	}
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Printf("database schema up to date")
	} else {
		log.Printf("migrated to %s", group)
	}
	return nil
}
