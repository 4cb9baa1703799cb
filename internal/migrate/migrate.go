// Package migrate provides database migration functionality using Goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/anivault/anivault/migrations"
)

// Migrator handles database migrations.
type Migrator struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *bun.DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger.Named("migrator"),
	}
}

// prepare points goose at the embedded migration FS and selects the dialect.
func prepare() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running database migrations")

	if err := prepare(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info("migrations completed successfully")
	return nil
}

// UpTo runs migrations up to a specific version.
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	m.logger.Info("running database migrations up to version", zap.Int64("version", version))

	if err := prepare(); err != nil {
		return err
	}

	if err := goose.UpToContext(ctx, m.db.DB, ".", version); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info("migrations completed successfully", zap.Int64("version", version))
	return nil
}

// Down rolls back the last migration.
func (m *Migrator) Down(ctx context.Context) error {
	m.logger.Info("rolling back last migration")

	if err := prepare(); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	m.logger.Info("rollback completed successfully")
	return nil
}

// Status prints the current migration status.
func (m *Migrator) Status(ctx context.Context) error {
	if err := prepare(); err != nil {
		return err
	}

	if err := goose.StatusContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	return nil
}

// Version returns the current database version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := prepare(); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}

	return version, nil
}

// MarkApplied marks a migration as applied without running it.
// This is useful for existing databases that already have the schema.
func (m *Migrator) MarkApplied(ctx context.Context, version int64) error {
	m.logger.Info("marking migration as applied", zap.Int64("version", version))

	_, err := m.db.DB.ExecContext(ctx, `
		INSERT INTO goose_db_version (version_id, is_applied)
		VALUES ($1, true)
		ON CONFLICT (version_id) DO UPDATE SET is_applied = true
	`, version)
	if err != nil {
		return fmt.Errorf("failed to mark migration as applied: %w", err)
	}

	return nil
}

// RunWithDB runs all pending migrations using a raw *sql.DB connection.
// The server uses this on startup when AUTO_MIGRATE is enabled.
func RunWithDB(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
