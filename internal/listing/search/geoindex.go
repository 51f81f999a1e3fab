package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/boxspot/internal/listing/domain"
)

// GeoIndex narrows a radius-bounded search to listings near the query
// point before the predicate pass runs. Implementations return listing
// ids sorted by distance.
type GeoIndex interface {
	UpsertLocation(ctx context.Context, listingID uuid.UUID, point domain.GeoPoint) error
	Nearby(ctx context.Context, point domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error)
}

var errInvalidGeoResult = errors.New("invalid geo search result")

// RedisGeoIndex implements GeoIndex using Redis GEO commands.
type RedisGeoIndex struct {
	client redis.Cmdable
	key    string
}

// NewRedisGeoIndex constructs a Redis-backed geo index.
func NewRedisGeoIndex(client redis.Cmdable, key string) *RedisGeoIndex {
	if key == "" {
		key = "listing:locs"
	}
	return &RedisGeoIndex{client: client, key: key}
}

// UpsertLocation adds or moves a listing in the index.
func (r *RedisGeoIndex) UpsertLocation(ctx context.Context, listingID uuid.UUID, point domain.GeoPoint) error {
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      listingID.String(),
		Longitude: point.Lon,
		Latitude:  point.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geoadd: %w", err)
	}
	return nil
}

// Nearby returns up to limit listing ids within radiusKM of the point,
// closest first.
func (r *RedisGeoIndex) Nearby(ctx context.Context, point domain.GeoPoint, radiusKM float64, limit int) ([]uuid.UUID, error) {
	query := &redis.GeoRadiusQuery{
		Radius: radiusKM,
		Unit:   "km",
		Sort:   "ASC",
		Count:  limit,
	}

	results, err := r.client.GeoRadius(ctx, r.key, point.Lon, point.Lat, query).Result()
	if err != nil {
		return nil, fmt.Errorf("redis georadius: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		id, err := uuid.Parse(res.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errInvalidGeoResult, res.Name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
