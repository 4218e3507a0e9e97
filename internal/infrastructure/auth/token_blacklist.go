package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers revoked token IDs until the tokens would have expired
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocations shares revocations between server instances
type RedisRevocations struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRevocations uses an existing client
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{
		client:    client,
		keyPrefix: "attendance-sync:revoked:",
	}
}

// Revoke stores jti for ttl
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked
func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

var _ Revocations = (*RedisRevocations)(nil)

// InMemoryRevocations is process local. Revocations are lost on restart
// and not seen by other instances.
type InMemoryRevocations struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewInMemoryRevocations creates an empty revocation list
func NewInMemoryRevocations() *InMemoryRevocations {
	return &InMemoryRevocations{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke stores jti for ttl
func (r *InMemoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires[jti] = r.now().Add(ttl)
	return nil
}

// IsRevoked reports whether jti was revoked and its entry has not expired
func (r *InMemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiration, ok := r.expires[jti]
	if !ok {
		return false, nil
	}
	if r.now().After(expiration) {
		delete(r.expires, jti)
		return false, nil
	}
	return true, nil
}

var _ Revocations = (*InMemoryRevocations)(nil)
