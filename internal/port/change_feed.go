package port

import (
	"context"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

type ChangeFeed interface {
	// Publish signals that a collection was mutated. The payload names
	// the collection and event type only; subscribers re-fetch.
	Publish(ctx context.Context, ch domain.Change) error

	// Subscribe delivers changes for the named collections until the
	// returned cancel func is called, which closes the channel.
	Subscribe(ctx context.Context, collections []string) (<-chan domain.Change, func(), error)
}
