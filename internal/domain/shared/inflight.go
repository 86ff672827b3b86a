package shared

import (
	"context"
	"time"
)

// InflightGuard prevents the same logical operation from running twice
// concurrently. Acquire returns true when the caller won the slot; the slot
// is released explicitly or expires after the TTL if the process dies
// mid-operation.
type InflightGuard interface {
	// Acquire attempts to claim the key. Returns true if the key was newly
	// claimed, false if another operation is already in flight.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the key so a later operation may claim it again.
	Release(ctx context.Context, key string) error

	// Close closes the guard and releases resources
	Close() error
}
