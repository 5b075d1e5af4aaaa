package redis

import (
	"context"
	"time"
)

// OccupancyCacheInterface defines the interface for occupancy display caching.
type OccupancyCacheInterface interface {
	GetOccupancy(ctx context.Context, tripID string) (*CachedOccupancy, error)
	SetOccupancy(ctx context.Context, occ *CachedOccupancy) error
	InvalidateTrips(ctx context.Context, tripIDs ...string) error
}

// NegotiationLockInterface defines the interface for negotiation action locking.
type NegotiationLockInterface interface {
	AcquireNegotiationLock(ctx context.Context, negotiationID string, ttl time.Duration) (string, error)
	ReleaseNegotiationLock(ctx context.Context, negotiationID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ OccupancyCacheInterface  = (*CacheStore)(nil)
	_ NegotiationLockInterface = (*LockStore)(nil)
)
