package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/pkg/logging"
)

const catalogKeyPrefix = "catalog:"

// CatalogSource is the upstream the cache reads through to.
type CatalogSource interface {
	GetSpecialties(ctx context.Context) ([]booking.Specialty, error)
	GetServiceTypes(ctx context.Context, specialtyID int64) ([]booking.ServiceType, error)
	GetAvailabilities(ctx context.Context, specialtyID int64, date booking.Date) ([]booking.AvailabilitySlot, error)
}

// CatalogCache caches specialties and service types, which change rarely.
// Availabilities always go to the source. Redis failures degrade to a
// direct upstream read.
type CatalogCache struct {
	source CatalogSource
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCatalogCache(source CatalogSource, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CatalogCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogCache{source: source, client: client, ttl: ttl, logger: logger}
}

func (c *CatalogCache) GetSpecialties(ctx context.Context) ([]booking.Specialty, error) {
	return readThrough(ctx, c, catalogKeyPrefix+"specialties", func() ([]booking.Specialty, error) {
		return c.source.GetSpecialties(ctx)
	})
}

func (c *CatalogCache) GetServiceTypes(ctx context.Context, specialtyID int64) ([]booking.ServiceType, error) {
	key := fmt.Sprintf("%sservice_types:%d", catalogKeyPrefix, specialtyID)
	return readThrough(ctx, c, key, func() ([]booking.ServiceType, error) {
		return c.source.GetServiceTypes(ctx, specialtyID)
	})
}

func (c *CatalogCache) GetAvailabilities(ctx context.Context, specialtyID int64, date booking.Date) ([]booking.AvailabilitySlot, error) {
	return c.source.GetAvailabilities(ctx, specialtyID, date)
}

func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func() ([]T, error)) ([]T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var items []T
		if err := json.Unmarshal(raw, &items); err == nil {
			return items, nil
		}
		c.logger.Warn("discarding undecodable catalog entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	items, err := load()
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(items); err == nil {
		if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "error", err)
		}
	}
	return items, nil
}
