package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOccupancyTTL bounds how stale a displayed occupancy can be when no
// transfer invalidates it first.
const DefaultOccupancyTTL = 15 * time.Second

const occupancyCachePrefix = "cache:occupancy:"

// CacheStore handles display caching in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl uses DefaultOccupancyTTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = DefaultOccupancyTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// CachedOccupancy represents a cached occupancy snapshot of a trip.
type CachedOccupancy struct {
	TripID   string  `json:"trip_id"`
	Percent  float64 `json:"percent"`
	Used     int     `json:"used"`
	Capacity int     `json:"capacity"`
}

// GetOccupancy retrieves a trip's occupancy from cache. Returns nil on a miss.
func (s *CacheStore) GetOccupancy(ctx context.Context, tripID string) (*CachedOccupancy, error) {
	data, err := s.client.Get(ctx, occupancyCachePrefix+tripID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var occ CachedOccupancy
	if err := json.Unmarshal(data, &occ); err != nil {
		return nil, err
	}
	return &occ, nil
}

// SetOccupancy stores a trip's occupancy in cache.
func (s *CacheStore) SetOccupancy(ctx context.Context, occ *CachedOccupancy) error {
	data, err := json.Marshal(occ)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, occupancyCachePrefix+occ.TripID, data, s.ttl).Err()
}

// InvalidateTrips removes the cached occupancy of the given trips.
func (s *CacheStore) InvalidateTrips(ctx context.Context, tripIDs ...string) error {
	if len(tripIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tripIDs))
	for _, id := range tripIDs {
		keys = append(keys, occupancyCachePrefix+id)
	}
	return s.client.Del(ctx, keys...).Err()
}
