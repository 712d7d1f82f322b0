// Package migrations applies the embedded schema for the configured driver.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/dsmilne3/ai-video-analyzer/internal/db"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Run applies all up migrations for the driver db was opened with.
func Run(conn *sqlx.DB) error {
	var (
		dir string
		drv database.Driver
		err error
	)
	switch conn.DriverName() {
	case db.DriverPostgres:
		dir = "postgres"
		drv, err = postgres.WithInstance(conn.DB, &postgres.Config{})
	case db.DriverSQLite:
		dir = "sqlite"
		drv, err = sqlite.WithInstance(conn.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("migrations: unsupported driver %q", conn.DriverName())
	}
	if err != nil {
		return fmt.Errorf("migrations: %s driver: %w", dir, err)
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("migrations: iofs: %w", err)
	}
	// m.Close would also close conn, which the caller still owns.
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, dir, drv)
	if err != nil {
		return fmt.Errorf("migrations: new: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
