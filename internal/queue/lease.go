package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLeaseHeld is returned when another holder owns the lease
var ErrLeaseHeld = errors.New("lease held by another instance")

const leasePrefix = "lease:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lease is a best-effort mutual exclusion lock across processes (SET NX PX)
type Lease struct {
	client *redis.Client
}

// NewLease creates a new Lease
func NewLease(client *redis.Client) *Lease {
	return &Lease{client: client}
}

// Acquire takes the named lease for ttl. It returns the owner token, or ErrLeaseHeld.
func (l *Lease) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, leasePrefix+name, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return "", ErrLeaseHeld
	}
	return token, nil
}

// Release drops the lease if token still owns it
func (l *Lease) Release(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leasePrefix + name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	return nil
}

// Run executes fn while holding the named lease
func (l *Lease) Run(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	defer func() {
		// the caller's ctx may already be done; release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx, name, token)
	}()
	return fn(ctx)
}
