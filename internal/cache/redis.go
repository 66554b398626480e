package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	blacklistPrefix = "blacklist:"
	rateLimitPrefix = "ratelimit:"
)

// INCR + EXPIRE атомарно: окно начинается с первого запроса
var luaRateLimit = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Connect парсит REDIS_URL и проверяет соединение
func Connect(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client), nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Blacklist запрещает access токен до его истечения
func (c *Cache) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

func (c *Cache) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := c.client.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Allow считает попытки по ключу в фиксированном окне
func (c *Cache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	current, err := luaRateLimit.Run(ctx, c.client, []string{rateLimitPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return current <= int64(limit), nil
}
