package authzredis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authzkit/pkg/authz"
)

var (
	ErrCacheGet    = errors.New("failed to read from redis cache")
	ErrCacheSet    = errors.New("failed to write to redis cache")
	ErrCacheDelete = errors.New("failed to delete from redis cache")
)

// Cache adapts a go-redis client to the authz.Cache interface. All keys
// are namespaced with an optional prefix so one Redis database can be
// shared by several services.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// Option configures the cache adapter.
type Option func(*Cache)

// WithKeyPrefix prepends prefix to every key the adapter touches.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a cache adapter on top of an established Redis client.
// Closing the adapter closes the client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(key string) string {
	return c.prefix + key
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(ErrCacheGet, err)
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return errors.Join(ErrCacheSet, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return errors.Join(ErrCacheDelete, err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

var _ authz.Cache = (*Cache)(nil)
