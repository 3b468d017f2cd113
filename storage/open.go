package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/quantumauth-io/quantum-chain-config/database"
	"github.com/quantumauth-io/quantum-chain-config/redis"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend  string
	Dir      string
	Migrate  bool
	Redis    redis.Config
	Postgres database.Settings
}

func noopClose() error { return nil }

// Open builds the configured backend. The returned close function releases
// connections held by the backend.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), noopClose, nil

	case BackendFile:
		fs, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, noopClose, nil

	case BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open redis storage")
		}
		return NewRedisStore(rdb, cfg.Redis.KeyPrefix), rdb.Close, nil

	case BackendPostgres:
		if cfg.Migrate {
			if err := database.Migrate(ctx, cfg.Postgres); err != nil {
				return nil, nil, errors.Wrap(err, "migrate sql storage")
			}
		}
		db, err := database.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sql storage")
		}
		return NewSQLStore(db), db.Close, nil

	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
