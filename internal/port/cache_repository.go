package port

import "context"

type StockCache interface {
	// DecrementStock atomically decreases cached stock, returns false
	// if insufficient
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores cached stock (for rollback on failure)
	IncrementStock(ctx context.Context, productID string, quantity int) error

	// SetStock mirrors a product's stock into the cache
	SetStock(ctx context.Context, productID string, quantity int) error

	// SyncStock replaces the whole mirror: every given product is
	// written and entries for products no longer listed are pruned
	SyncStock(ctx context.Context, stocks map[string]int) error

	// SetIdempotency sets a key for idempotency check, returns false if
	// already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
