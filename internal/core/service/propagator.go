package service

import (
	"context"
	"log"
	"sync"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/port"
)

// Propagator relays store change notifications to registered views.
// It is push-to-invalidate: handlers re-fetch their collection, so they
// must tolerate redundant and out-of-order invocations.
type Propagator struct {
	feed port.ChangeFeed

	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]func(context.Context)

	cancel func()
	done   chan struct{}
}

func NewPropagator(feed port.ChangeFeed) *Propagator {
	return &Propagator{
		feed:     feed,
		handlers: make(map[string]map[int]func(context.Context)),
	}
}

// Register adds a re-fetch handler for a collection and returns its
// remove func. Handlers added after Start still receive subsequent
// events.
func (p *Propagator) Register(collection string, fn func(context.Context)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handlers[collection] == nil {
		p.handlers[collection] = make(map[int]func(context.Context))
	}
	id := p.nextID
	p.nextID++
	p.handlers[collection][id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers[collection], id)
	}
}

// Start subscribes once for both collections and dispatches until
// Close is called.
func (p *Propagator) Start(ctx context.Context) error {
	events, cancel, err := p.feed.Subscribe(ctx, []string{domain.CollectionProducts, domain.CollectionSales})
	if err != nil {
		return err
	}
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		for ch := range events {
			p.dispatch(ctx, ch)
		}
	}()
	return nil
}

func (p *Propagator) dispatch(ctx context.Context, ch domain.Change) {
	p.mu.Lock()
	fns := make([]func(context.Context), 0, len(p.handlers[ch.Collection]))
	for _, fn := range p.handlers[ch.Collection] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	log.Printf("change on %s (%s), refreshing %d view(s)", ch.Collection, ch.Event, len(fns))
	for _, fn := range fns {
		fn(ctx)
	}
}

// Close tears down the subscription and waits for the dispatch
// goroutine to drain.
func (p *Propagator) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}
