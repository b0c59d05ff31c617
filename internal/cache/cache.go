// Package cache stores upstream web service responses keyed by request.
// Backends are an in-process expirable LRU and Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/joeblew999/kochizu/internal/metrics"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with a fixed TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	Backend() string
}

// GetJSON decodes a cached value into v. It returns ErrMiss for absent keys
// and counts hits and misses per backend.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	if c == nil {
		return ErrMiss
	}
	b, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.CacheMissesTotal.WithLabelValues(c.Backend()).Inc()
		}
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		metrics.CacheMissesTotal.WithLabelValues(c.Backend()).Inc()
		return fmt.Errorf("decoding cached %s: %w", key, err)
	}
	metrics.CacheHitsTotal.WithLabelValues(c.Backend()).Inc()
	return nil
}

// SetJSON encodes v and stores it. A nil cache is a no-op.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b)
}

// CoordKey builds a stable key for a coordinate lookup. Coordinates are
// rounded to 5 decimals, roughly one metre.
func CoordKey(prefix string, lat, lon float64) string {
	return fmt.Sprintf("%s:%.5f:%.5f", prefix, round5(lat), round5(lon))
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Config selects and sizes a backend.
type Config struct {
	RedisAddr string
	RedisPass string
	RedisDB   int
	Size      int
	TTL       time.Duration
	Prefix    string
}

// New returns a Redis cache when an address is configured and reachable,
// otherwise an in-process LRU.
func New(ctx context.Context, cfg Config) (Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.Size, cfg.TTL), nil
	}
	r := NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.Prefix, cfg.TTL)
	if err := r.Ping(ctx); err != nil {
		r.Close()
		return NewMemory(cfg.Size, cfg.TTL), fmt.Errorf("redis %s unreachable, using memory cache: %w", cfg.RedisAddr, err)
	}
	return r, nil
}
