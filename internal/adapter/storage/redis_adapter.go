package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// RedisAdapter keeps a per-product stock mirror and the checkout
// idempotency keys. The mirror only pre-filters checkouts; the MySQL
// row stays the authority, so overwriting a mirror entry with a
// fresher value is always safe.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// SetStock writes one product's mirror entry.
func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

// SyncStock rewrites the mirror from the full product list and prunes
// entries whose product is gone, so deleted products do not leave
// stock keys behind.
func (r *RedisAdapter) SyncStock(ctx context.Context, stocks map[string]int) error {
	pipe := r.client.Pipeline()
	for productID, quantity := range stocks {
		pipe.Set(ctx, stockKeyPrefix+productID, quantity, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, stockKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			productID := strings.TrimPrefix(key, stockKeyPrefix)
			if _, live := stocks[productID]; !live {
				if err := r.client.Del(ctx, key).Err(); err != nil {
					return err
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Decrementing and the floor check have to be one step, otherwise two
// checkouts can both read the same stock and both pass. The script
// also treats a missing key as empty so unmirrored products never
// sell.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// DecrementStock takes quantity out of the mirror, refusing to go
// below zero. A false return means the checkout line is rejected
// before MySQL is ever touched.
func (r *RedisAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := decrementStockScript.Run(ctx, r.client, []string{stockKeyPrefix + productID}, quantity).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// IncrementStock puts a failed line's quantity back into the mirror.
func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	return r.client.IncrBy(ctx, stockKeyPrefix+productID, int64(quantity)).Err()
}

// SetIdempotency claims a checkout request id. The TTL keeps abandoned
// ids from piling up while still covering any realistic retry window.
func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
}
