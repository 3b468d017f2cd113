package database

import (
	"context"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/quantumauth-io/quantum-chain-config/retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationSource exposes the bundled schema as a golang-migrate source.
func MigrationSource() (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations")
}

// Migrate brings the schema up to date. "no change" is not an error.
func Migrate(ctx context.Context, settings Settings) error {
	dsn, err := DSN(settings)
	if err != nil {
		return errors.Wrap(err, "failed to create connection string")
	}

	retryCfg := retry.BoundedConfig(defaultMaxRetry, time.Second)
	_, err = retry.Do(ctx, retryCfg,
		func(context.Context) (struct{}, error) {
			src, err := MigrationSource()
			if err != nil {
				return struct{}{}, errors.Wrap(err, "failed to open embedded migrations")
			}
			m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
			if err != nil {
				return struct{}{}, errors.Wrap(err, "failed to initialize migrations")
			}
			defer m.Close()
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return struct{}{}, errors.Wrap(err, "error migrating database schema")
			}
			return struct{}{}, nil
		},
		nil,
		"Database Migration",
	)
	return err
}
