package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles short-lived locks in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireNegotiationLock attempts to acquire the lock for the given negotiation.
// Returns a release token, or an empty token if the lock is already held.
func (s *LockStore) AcquireNegotiationLock(ctx context.Context, negotiationID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, negotiationLockKey(negotiationID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

// ReleaseNegotiationLock releases the lock if token still owns it.
func (s *LockStore) ReleaseNegotiationLock(ctx context.Context, negotiationID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{negotiationLockKey(negotiationID)}, token).Err()
}

func negotiationLockKey(negotiationID string) string {
	return fmt.Sprintf("lock:negotiation:%s", negotiationID)
}
