package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.elastic.co/apm/module/apmsql/v2"
	_ "go.elastic.co/apm/module/apmsql/v2/pq"

	"github.com/quantumauth-io/quantum-chain-config/retry"
)

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DB is the narrow surface the key/value store needs.
type DB interface {
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Ping(ctx context.Context) error
	Close() error
}

type SQLDatabase struct {
	db       *sql.DB
	settings Settings
}

// Open connects through the APM-instrumented postgres driver and pings it,
// retrying transient failures.
func Open(ctx context.Context, settings Settings) (*SQLDatabase, error) {
	dsn, err := DSN(settings)
	if err != nil {
		return nil, err
	}

	retryCfg := retry.BoundedConfig(defaultMaxRetry, time.Second)
	db, err := retry.Do(ctx, retryCfg,
		func(ctx context.Context) (*SQLDatabase, error) {
			raw, err := apmsql.Open("postgres", dsn)
			if err != nil {
				return nil, errors.Wrap(err, "error opening the database")
			}
			if err := raw.PingContext(ctx); err != nil {
				_ = raw.Close()
				return nil, errors.Wrap(err, "error pinging the database")
			}
			return NewFromDB(raw, settings), nil
		},
		IsRetryable,
		"Database Connection",
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database after retries")
	}
	return db, nil
}

// NewFromDB wraps an existing handle and applies the pool settings.
func NewFromDB(db *sql.DB, settings Settings) *SQLDatabase {
	return &SQLDatabase{db: configurePool(db, settings), settings: settings}
}

func (d *SQLDatabase) Settings() Settings { return d.settings }

func (d *SQLDatabase) QueryRow(ctx context.Context, query string, args ...any) Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *SQLDatabase) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *SQLDatabase) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *SQLDatabase) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}
	return nil
}

func (d *SQLDatabase) Close() error {
	return d.db.Close()
}

// IsRetryable reports whether a database error may succeed on a fresh attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23", "42": // integrity violations, syntax/access rule
			return false
		}
		return true
	}

	// network level failures get a fresh connection from the pool
	return true
}
