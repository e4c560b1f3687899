package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	redisx "github.com/kirinyoku/cinebook/internal/redis"
)

// Cache is a JSON read-through cache. Misses on the same key are collapsed
// into a single loader call.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

func (c *Cache) SetString(
	ctx context.Context,
	key string,
	val string,
	ttl time.Duration,
) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

// Track adds key to the set stored at setKey so it can be dropped together
// with its siblings later.
func (c *Cache) Track(ctx context.Context, setKey, key string, ttl time.Duration) error {
	if c == nil {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, setKey, key)
	pipe.Expire(ctx, setKey, ttl)
	_, err := pipe.Exec(ctx)

	return err
}

func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(
	ctx context.Context,
	c *Cache,
	key string,
	val any,
	ttl time.Duration,
) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.SetString(ctx, key, string(b), ttl)
}

// GetOrSetJSON returns the cached value at key, or calls loader and caches
// its result for ttl. Loader errors are returned and nothing is cached.
// A nil cache always calls loader.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	if v, ok, err := GetJSON[T](ctx, c, key); err != nil || ok {
		return v, err
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		if v2, ok2, err2 := GetJSON[T](ctx, c, key); err2 != nil || ok2 {
			return v2, err2
		}
		v3, err3 := loader(ctx)
		if err3 != nil {
			return nil, err3
		}
		_ = SetJSON(ctx, c, key, v3, ttl)
		return v3, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		var zero T
		return zero, errors.New("type assertion failed")
	}

	return v, nil
}

// InvalidateMovie drops the cached movie and every cached movie listing.
func (c *Cache) InvalidateMovie(ctx context.Context, movieID uuid.UUID) error {
	if c == nil {
		return nil
	}

	lists, err := c.rdb.SMembers(ctx, redisx.KeyMoviesListIndex()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := append(lists, redisx.KeyMovie(movieID), redisx.KeyMoviesListIndex())

	return c.Del(ctx, keys...)
}

func (c *Cache) InvalidateUserBookings(ctx context.Context, userID uuid.UUID) error {
	return c.Del(ctx, redisx.KeyUserBookings(userID))
}
