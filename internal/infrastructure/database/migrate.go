package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// DefaultMigrationsDir is where the schema migrations live relative to the working directory
const DefaultMigrationsDir = "migrations/up"

// NewMigrate creates a migrate instance for the given migrations directory
func NewMigrate(databaseURL, dir string) (*migrate.Migrate, error) {
	migrationsPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("error resolving migrations path: %w", err)
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", filepath.ToSlash(migrationsPath)), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations runs all pending migrations from dir
func (p *Postgres) RunMigrations(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("error reading migrations directory: %w", err)
	}

	m, err := NewMigrate(p.url, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	p.log.Info("Migrations completed successfully", zap.String("dir", dir))
	return nil
}
