package storage

import (
	"context"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const redisScanCount = 100

// RedisStore maps keys to plain redis strings under a fixed key prefix.
type RedisStore struct {
	rdb    goredis.Cmdable
	prefix string
}

func NewRedisStore(rdb goredis.Cmdable, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

func (r *RedisStore) k(key string) string { return r.prefix + key }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.k(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return b, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.k(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.k(k)
	}
	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// Keys walks SCAN until the cursor wraps; results are returned without the store prefix.
func (r *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	match := r.k(prefix) + "*"
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, redisScanCount).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis scan")
		}
		for _, k := range keys {
			out = append(out, k[len(r.prefix):])
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
