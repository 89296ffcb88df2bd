package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session updates across router replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a session id) is held or ctx ends.
	// The lock expires after ttl if it is never released; the returned
	// UnlockFunc must be called otherwise.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
