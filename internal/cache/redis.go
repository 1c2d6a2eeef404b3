package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Domenick1991/flightseats/config"
	"github.com/Domenick1991/flightseats/internal/domain"
	"github.com/Domenick1991/flightseats/internal/lock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only while it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type RedisCache struct {
	client     redis.Cmdable
	flightsTTL time.Duration
	newToken   func() string
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL, newToken: uuid.NewString}
}

var _ lock.LeaseStore = (*RedisCache)(nil)

func (c *RedisCache) Close() error {
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetFlights returns nil, nil on a cache miss.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

// InvalidateFlights drops the cached listing after any seat count change.
func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

func (c *RedisCache) AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (string, bool, error) {
	token := c.newToken()
	ok, err := c.client.SetNX(ctx, flightLockKey(flightID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) ReleaseFlightLock(ctx context.Context, flightID int64, token string) error {
	return c.client.Eval(ctx, releaseScript, []string{flightLockKey(flightID)}, token).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func flightLockKey(flightID int64) string {
	return fmt.Sprintf("lock:flight:%d", flightID)
}
