package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsTable keeps the version table apart from anything else sharing the database.
const MigrationsTable = "tracker_schema_migrations"

// Migrate applies every pending migration. An up-to-date schema is not an error.
func Migrate(url string) error {
	target, err := migrateURL(url)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("closing migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	slog.Info("database migrated", "version", version, "dirty", dirty)
	return nil
}

// migrateURL rewrites a postgres:// URL to the pgx5:// scheme the migrate driver registers.
func migrateURL(url string) (string, error) {
	if _, err := ParseURL(url); err != nil {
		return "", err
	}

	var rest string
	switch {
	case strings.HasPrefix(url, "postgres://"):
		rest = strings.TrimPrefix(url, "postgres://")
	case strings.HasPrefix(url, "postgresql://"):
		rest = strings.TrimPrefix(url, "postgresql://")
	case strings.HasPrefix(url, "pgx5://"):
		rest = strings.TrimPrefix(url, "pgx5://")
	default:
		return "", fmt.Errorf("migrations need a postgres:// URL")
	}

	sep := "?"
	if strings.Contains(rest, "?") {
		sep = "&"
	}
	return "pgx5://" + rest + sep + "x-migrations-table=" + MigrationsTable, nil
}
