package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const fileScheme = "file://"

// migrationSource turns a migrations directory into a golang-migrate source URL.
// Relative directories resolve against the working directory.
func migrationSource(path string) (string, error) {
	if path == "" {
		return "", errors.New("migrations path cannot be empty")
	}
	if strings.HasPrefix(path, fileScheme) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path %s: %w", path, err)
	}
	return fileScheme + filepath.ToSlash(abs), nil
}

// RunMigrations brings the ledger schema, its append-only triggers and the
// reference seed up to date. A dirty schema is an error.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) error {
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}
	source, err := migrationSource(migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrate instance", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	logger.Info("Schema migrated", "version", version, "source", source)
	return nil
}
