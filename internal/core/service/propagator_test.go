package service

import (
	"context"
	"testing"
	"time"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

// Mock ChangeFeed delivering changes over an in-process channel.
type mockFeed struct {
	ch chan domain.Change
}

func newMockFeed() *mockFeed {
	return &mockFeed{ch: make(chan domain.Change, 16)}
}

func (f *mockFeed) Publish(ctx context.Context, ch domain.Change) error {
	f.ch <- ch
	return nil
}

func (f *mockFeed) Subscribe(ctx context.Context, collections []string) (<-chan domain.Change, func(), error) {
	return f.ch, func() { close(f.ch) }, nil
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected notification %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q notification", want)
	}
}

func TestPropagator_DispatchesToRegisteredCollection(t *testing.T) {
	feed := newMockFeed()
	p := NewPropagator(feed)
	defer p.Close()

	called := make(chan string, 4)
	p.Register(domain.CollectionProducts, func(context.Context) { called <- "products" })
	p.Register(domain.CollectionSales, func(context.Context) { called <- "sales" })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	feed.Publish(context.Background(), domain.Change{Collection: domain.CollectionProducts, Event: domain.EventInsert})
	waitFor(t, called, "products")

	feed.Publish(context.Background(), domain.Change{Collection: domain.CollectionSales, Event: domain.EventInsert})
	waitFor(t, called, "sales")
}

func TestPropagator_FanOut(t *testing.T) {
	feed := newMockFeed()
	p := NewPropagator(feed)
	defer p.Close()

	called := make(chan string, 4)
	p.Register(domain.CollectionProducts, func(context.Context) { called <- "a" })
	p.Register(domain.CollectionProducts, func(context.Context) { called <- "b" })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	feed.Publish(context.Background(), domain.Change{Collection: domain.CollectionProducts, Event: domain.EventUpdate})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case got := <-called:
			seen[got] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("expected both handlers invoked, got %v", seen)
	}
}

func TestPropagator_Unregister(t *testing.T) {
	feed := newMockFeed()
	p := NewPropagator(feed)
	defer p.Close()

	called := make(chan string, 4)
	remove := p.Register(domain.CollectionProducts, func(context.Context) { called <- "removed" })
	p.Register(domain.CollectionProducts, func(context.Context) { called <- "kept" })
	remove()

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	feed.Publish(context.Background(), domain.Change{Collection: domain.CollectionProducts, Event: domain.EventDelete})
	waitFor(t, called, "kept")

	select {
	case got := <-called:
		t.Errorf("unexpected extra notification %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPropagator_RedundantEventsAreSafe(t *testing.T) {
	feed := newMockFeed()
	p := NewPropagator(feed)
	defer p.Close()

	called := make(chan string, 8)
	p.Register(domain.CollectionSales, func(context.Context) { called <- "refetch" })

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Out-of-order and duplicate deliveries just mean redundant
	// re-fetches
	for i := 0; i < 3; i++ {
		feed.Publish(context.Background(), domain.Change{Collection: domain.CollectionSales, Event: domain.EventInsert})
	}
	for i := 0; i < 3; i++ {
		waitFor(t, called, "refetch")
	}
}

func TestPropagator_CloseStopsDispatch(t *testing.T) {
	feed := newMockFeed()
	p := NewPropagator(feed)

	p.Register(domain.CollectionProducts, func(context.Context) {})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.Close()
	// Close is idempotent once torn down
	p.Close()
}
