package port

import "context"

// IdempotencyGuard rejects duplicate in-flight submissions of the same
// logical operation. Keys self-expire so a crashed holder cannot wedge
// the operation forever.
type IdempotencyGuard interface {
	// Acquire claims the key; returns false if it is already held.
	Acquire(ctx context.Context, key string) (bool, error)

	// Release frees the key early, before its TTL.
	Release(ctx context.Context, key string) error
}
