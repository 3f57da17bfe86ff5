package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richd0tcom/sensorgate/internal/domain"
)

const DefaultKey = "sensorgate:sensors"

// SensorCache is a read-through Redis cache in front of a SensorStore.
// Redis errors are logged and the underlying store is used instead.
type SensorCache struct {
	next   domain.SensorStore
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", addr, err)
	}
	return rdb, nil
}

func NewSensorCache(next domain.SensorStore, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *SensorCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SensorCache{
		next:   next,
		rdb:    rdb,
		key:    DefaultKey,
		ttl:    ttl,
		logger: logger.With("component", "sensor-cache"),
	}
}

func (c *SensorCache) ListSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		if sensors, err := decodeSensors(data); err == nil {
			return sensors, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", c.key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("redis get failed", "key", c.key, "error", err)
	}

	sensors, err := c.next.ListSensors(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := encodeSensors(sensors); err == nil {
		if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("redis set failed", "key", c.key, "error", err)
		}
	}
	return sensors, nil
}

// Invalidate drops the cached listing.
func (c *SensorCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}

func (c *SensorCache) Close() error {
	return errors.Join(c.rdb.Close(), c.next.Close())
}
