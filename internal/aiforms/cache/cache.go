// Кэш публичных списков (последние и популярные шаблоны, популярные теги) в Redis.
// Нулевой *Cache означает выключенный кэш: чтение всегда промах, запись и сброс ничего не делают.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "aiforms:"

	KeyLatestTemplates  = keyPrefix + "templates:latest"
	KeyPopularTemplates = keyPrefix + "templates:popular"
	KeyPopularTags      = keyPrefix + "tags:popular"

	DefaultTTL = 2 * time.Minute
)

// ListingKeys - ключи, зависящие от набора шаблонов и их счетчиков
var ListingKeys = []string{KeyLatestTemplates, KeyPopularTemplates, KeyPopularTags}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New подключается к Redis и проверяет соединение. Для пустого addr возвращает nil без ошибки.
func New(ctx context.Context, addr, password string) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Cache{rdb: rdb, ttl: DefaultTTL}, nil
}

func (c *Cache) Enabled() bool {
	return c != nil
}

// Get читает значение по ключу в dest. Возвращает false при промахе или ошибке.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Cache get", "key", key, "err", err)
		}
		return false
	}
	return json.Unmarshal(val, dest) == nil
}

func (c *Cache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		slog.Warn("Cache set", "key", key, "err", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Cache delete", "keys", keys, "err", err)
	}
}

// InvalidateListings сбрасывает все кэшированные списки
func (c *Cache) InvalidateListings(ctx context.Context) {
	c.Delete(ctx, ListingKeys...)
}

// Remember возвращает значение из кэша или вызывает load и кэширует его результат
func Remember[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	var v T
	if c.Get(ctx, key, &v) {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v)
	return v, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
