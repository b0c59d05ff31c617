package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared between server instances.
type Redis struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis opens a client. The connection is established lazily.
func NewRedis(addr, pass string, db int, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		rc:     redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rc *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{rc: rc, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rc.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.rc.Set(ctx, r.prefix+key, val, r.ttl).Err()
}

func (r *Redis) Backend() string { return "redis" }

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error { return r.rc.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.rc.Close() }
