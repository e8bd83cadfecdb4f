package storage

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

const changeChannelPrefix = "changes:"

// RedisChangeFeed carries change notifications between sessions over
// Redis pub/sub, one channel per collection. Delivery is at-most-once
// and unordered relative to local mutations, which is fine: consumers
// re-fetch rather than apply payloads.
type RedisChangeFeed struct {
	client *redis.Client
}

func NewRedisChangeFeed(client *redis.Client) *RedisChangeFeed {
	return &RedisChangeFeed{client: client}
}

func (f *RedisChangeFeed) Publish(ctx context.Context, ch domain.Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, changeChannelPrefix+ch.Collection, payload).Err()
}

// Subscribe listens on the channels for the named collections. The
// cancel func closes the subscription, which in turn closes the
// returned channel.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, collections []string) (<-chan domain.Change, func(), error) {
	channels := make([]string, len(collections))
	for i, c := range collections {
		channels[i] = changeChannelPrefix + c
	}

	sub := f.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, &domain.StoreError{Op: "subscribe", Err: err}
	}

	out := make(chan domain.Change)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ch domain.Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				log.Printf("dropping malformed change notification: %v", err)
				continue
			}
			out <- ch
		}
	}()

	cancel := func() {
		if err := sub.Close(); err != nil {
			log.Printf("failed to close change subscription: %v", err)
		}
	}
	return out, cancel, nil
}
