package postgres

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded migration files at the root of the FS.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// MigrationStatus is the schema version after a migrate command.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrate runs command ("up", "down" or "version") against dsn using the
// embedded migrations.
func Migrate(dsn, command string) (*MigrationStatus, error) {
	switch command {
	case "up", "down", "version":
	default:
		return nil, fmt.Errorf("unknown migrate command %q (use: up, down, version)", command)
	}

	src, err := iofs.New(Migrations(), ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migrate down: %w", err)
		}
	}

	ver, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &MigrationStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrate version: %w", err)
	}
	logger.Info("[postgres.Migrate] schema version", "command", command, "version", ver, "dirty", dirty)
	return &MigrationStatus{Version: ver, Dirty: dirty}, nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Info("[postgres.Migrate] " + fmt.Sprintf(format, v...))
}

func (migrateLogger) Verbose() bool { return false }
