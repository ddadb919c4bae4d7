package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachingRepository decorates a Repository with Redis caching for
// configuration reads. Keys (under prefix, default "gateway:"):
//   - routes                  -> JSON array (ListRoutes)
//   - route:<path>            -> JSON object (FindRoute)
//   - descriptor:<code>       -> JSON object (GetDescriptor)
//   - params:<code>           -> JSON array (ListParameters)
//   - bindings:<code>:<param> -> JSON array (ListBindings)
//   - rule:<id>               -> JSON object (GetBusinessRule)
//   - message:<code>          -> JSON string (ErrorMessage)
//   - setters:<type>          -> JSON array (ListSetters)
//
// Identity usage, lookups, rule listing and pings always reach the inner
// repository.
// Errors, including not-found, are never cached.
type CachingRepository struct {
	inner  Repository
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewCachingRepository(inner Repository, rdb *redis.Client, ttl time.Duration, prefix string) *CachingRepository {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if prefix == "" {
		prefix = "gateway:"
	}
	return &CachingRepository{inner: inner, rdb: rdb, ttl: ttl, prefix: prefix}
}

func cached[T any](ctx context.Context, c *CachingRepository, key string, load func() (T, error)) (T, error) {
	key = c.prefix + key
	if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var v T
		if json.Unmarshal(bs, &v) == nil {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if bs, err := json.Marshal(v); err == nil {
		_ = c.rdb.Set(ctx, key, bs, c.ttl).Err()
	}
	return v, nil
}

func (c *CachingRepository) FindRoute(ctx context.Context, path string) (*Route, error) {
	return cached(ctx, c, "route:"+path, func() (*Route, error) { return c.inner.FindRoute(ctx, path) })
}

func (c *CachingRepository) ListRoutes(ctx context.Context) ([]*Route, error) {
	return cached(ctx, c, "routes", func() ([]*Route, error) { return c.inner.ListRoutes(ctx) })
}

func (c *CachingRepository) GetDescriptor(ctx context.Context, apiCode string) (*Descriptor, error) {
	return cached(ctx, c, "descriptor:"+apiCode, func() (*Descriptor, error) { return c.inner.GetDescriptor(ctx, apiCode) })
}

func (c *CachingRepository) ListParameters(ctx context.Context, apiCode string) ([]*ParameterSpec, error) {
	return cached(ctx, c, "params:"+apiCode, func() ([]*ParameterSpec, error) { return c.inner.ListParameters(ctx, apiCode) })
}

func (c *CachingRepository) ListBindings(ctx context.Context, apiCode, param string) ([]*RuleBinding, error) {
	return cached(ctx, c, "bindings:"+apiCode+":"+param, func() ([]*RuleBinding, error) {
		return c.inner.ListBindings(ctx, apiCode, param)
	})
}

func (c *CachingRepository) GetBusinessRule(ctx context.Context, id string) (*BusinessRule, error) {
	return cached(ctx, c, "rule:"+id, func() (*BusinessRule, error) { return c.inner.GetBusinessRule(ctx, id) })
}

// ListBusinessRules is a startup check and always reads the inner store.
func (c *CachingRepository) ListBusinessRules(ctx context.Context) ([]*BusinessRule, error) {
	return c.inner.ListBusinessRules(ctx)
}

func (c *CachingRepository) ErrorMessage(ctx context.Context, code string) (string, error) {
	return cached(ctx, c, "message:"+code, func() (string, error) { return c.inner.ErrorMessage(ctx, code) })
}

func (c *CachingRepository) ListSetters(ctx context.Context, handlerType string) ([]*SetterMapping, error) {
	return cached(ctx, c, "setters:"+handlerType, func() ([]*SetterMapping, error) { return c.inner.ListSetters(ctx, handlerType) })
}

func (c *CachingRepository) GetIdentity(ctx context.Context, identity string) (*IdentityUsage, error) {
	return c.inner.GetIdentity(ctx, identity)
}

func (c *CachingRepository) IncrementUsage(ctx context.Context, identity string) error {
	return c.inner.IncrementUsage(ctx, identity)
}

func (c *CachingRepository) Exists(ctx context.Context, q ExistsQuery, value any) (bool, error) {
	return c.inner.Exists(ctx, q, value)
}

func (c *CachingRepository) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

// Flush removes every cached key under the prefix and returns the count.
func (c *CachingRepository) Flush(ctx context.Context) (int, error) {
	var cursor uint64
	n := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return n, err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return n, err
			}
			n += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}
