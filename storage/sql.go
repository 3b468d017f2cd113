package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/quantumauth-io/quantum-chain-config/database"
)

const (
	sqlGet    = `SELECT value FROM kv_store WHERE key = $1`
	sqlUpsert = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now()) ` +
		`ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	sqlDelete = `DELETE FROM kv_store WHERE key = ANY($1)`
	sqlKeys   = `SELECT key FROM kv_store WHERE key LIKE $1 ESCAPE '\' ORDER BY key`
)

// SQLStore keeps blobs in the kv_store table created by the database migrations.
type SQLStore struct {
	db database.DB
}

func NewSQLStore(db database.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, sqlGet, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", key)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, sqlUpsert, key, value); err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, sqlDelete, pq.Array(keys)); err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.Query(ctx, sqlKeys, likeEscape(prefix)+"%")
	if err != nil {
		return nil, errors.Wrap(err, "list keys")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "scan key")
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string { return likeReplacer.Replace(s) }
