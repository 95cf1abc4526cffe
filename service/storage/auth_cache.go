package storage

import (
	"context"
	"time"

	"ArgbRelay/module/relay/model"
)

const authKeyPrefix = "ArgbRelay:Auth:"

// AuthKey is the cache key of a client's auth context.
func AuthKey(clientID string) string { return authKeyPrefix + clientID }

// AuthCache stores auth contexts by client id. Entries past their TTL must read as absent.
type AuthCache interface {
	// Set replaces any entry for clientID.
	Set(ctx context.Context, clientID string, ac model.AuthContext, ttl time.Duration) error
	// Get returns false on a miss or an expired entry.
	Get(ctx context.Context, clientID string) (model.AuthContext, bool, error)
	Delete(ctx context.Context, clientID string) error
	Close() error
}

var (
	_ AuthCache = (*MemoryAuthCache)(nil)
	_ AuthCache = (*RedisAuthCache)(nil)
)
