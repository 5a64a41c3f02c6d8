package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/cache"
	"github.com/pcxmarket/storefront/storage"
)

// Backends are the opened storage and cache. Close releases them.
type Backends struct {
	Store storage.Store

	// Cache is nil for the memory backend; the client then builds its own
	// clock-aware memory cache.
	Cache cache.Cache

	closers []io.Closer
}

// Open connects the configured storage and cache backends and seeds the
// token store from AccessToken/RefreshToken.
func (c *Config) Open(ctx context.Context) (*Backends, error) {
	b := &Backends{}

	var rdb *redis.Client
	if c.usesRedis() {
		rdb = storage.NewRedisClient(c.Storage.RedisAddr)
		b.closers = append(b.closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("config: redis %s: %w", c.Storage.RedisAddr, err)
		}
	}

	switch c.Storage.Backend {
	case BackendMemory:
		b.Store = storage.NewMemoryStore()
	case BackendFile:
		fs, err := storage.OpenFileStore(c.Storage.Path)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = fs
	case BackendRedis:
		b.Store = storage.NewRedisStore(rdb, c.Storage.RedisPrefix)
	default:
		_ = b.Close()
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}

	if c.Cache.Backend == BackendRedis {
		b.Cache = cache.NewRedisCache(rdb, c.Storage.RedisPrefix+"cache:", c.CachePolicy())
	}

	if c.AccessToken != "" {
		tokens := auth.NewTokenStore(b.Store)
		if err := tokens.SetPair(ctx, auth.TokenPair{Access: c.AccessToken, Refresh: c.RefreshToken}); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// Close releases every connection opened by Open.
func (b *Backends) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	b.closers = nil
	return errors.Join(errs...)
}
