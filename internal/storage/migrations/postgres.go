package migrations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver for golang_migrate
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// RunPostgres applies the embedded Postgres migrations up to the latest version.
func RunPostgres(dsn string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newPostgresMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	default:
		logger.Info("migrations completed")
	}
	return nil
}

// DownPostgres rolls back the given number of Postgres migrations.
func DownPostgres(dsn string, steps int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than zero")
	}
	m, err := newPostgresMigrator(dsn)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

func newPostgresMigrator(dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	source, err := iofs.New(PostgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("start migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("close migration database", zap.Error(dbErr))
	}
}

// migrateURL rewrites a libpq style URL to the pgx5 scheme.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
