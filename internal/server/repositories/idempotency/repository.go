package idempotency

import "context"

// Repository remembers processed idempotency keys. Keys are never deleted;
// a key once recorded makes every later submission under it a no-op.
type Repository interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key, noteID, deviceID string) error
}
