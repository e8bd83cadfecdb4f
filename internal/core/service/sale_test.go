package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

// Mock StockCache
type mockStockCache struct {
	mu           sync.Mutex
	stock        map[string]int
	idempotency  map[string]bool
	decrementErr error
}

func newMockStockCache() *mockStockCache {
	return &mockStockCache{
		stock:       make(map[string]int),
		idempotency: make(map[string]bool),
	}
}

func (m *mockStockCache) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decrementErr != nil {
		return false, m.decrementErr
	}
	if m.stock[productID] >= quantity {
		m.stock[productID] -= quantity
		return true, nil
	}
	return false, nil
}

func (m *mockStockCache) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += quantity
	return nil
}

func (m *mockStockCache) SetStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

func (m *mockStockCache) SyncStock(ctx context.Context, stocks map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock = make(map[string]int, len(stocks))
	for id, q := range stocks {
		m.stock[id] = q
	}
	return nil
}

func (m *mockStockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotency[key] {
		return false, nil
	}
	m.idempotency[key] = true
	return true, nil
}

// Mock SaleRepository backed by an in-memory stock map with the same
// conditional-decrement guard the MySQL adapter enforces.
type mockSaleRepo struct {
	mu        sync.Mutex
	stock     map[string]int
	sales     []domain.Sale
	rows      []domain.SaleRow
	createErr error
}

func newMockSaleRepo() *mockSaleRepo {
	return &mockSaleRepo{stock: make(map[string]int)}
}

func (m *mockSaleRepo) CreateSale(ctx context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	current, ok := m.stock[sale.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	if current < sale.Quantity {
		return domain.ErrStockExceeded
	}
	m.stock[sale.ProductID] = current - sale.Quantity
	m.sales = append(m.sales, sale)
	return nil
}

func (m *mockSaleRepo) ListJoined(ctx context.Context) ([]domain.SaleRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows, nil
}

func setStock(cache *mockStockCache, repo *mockSaleRepo, productID string, stock int) {
	cache.SetStock(context.Background(), productID, stock)
	repo.mu.Lock()
	repo.stock[productID] = stock
	repo.mu.Unlock()
}

func TestCommit_TwoLines(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "p1", 5)
	setStock(cache, repo, "p2", 5)

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Beans", 10, 5)
	cart.AddLine("p1", "Beans", 10, 5)
	cart.AddLine("p2", "Bread", 5, 5)
	cart.AddLine("p2", "Bread", 5, 5)
	cart.AddLine("p2", "Bread", 5, 5)

	result, err := committer.Commit(context.Background(), "req-1", cart)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 line results, got %d", len(result.Lines))
	}
	for _, l := range result.Lines {
		if l.Err != nil {
			t.Errorf("line %s failed: %v", l.ProductID, l.Err)
		}
		if l.SaleID == "" {
			t.Errorf("line %s missing sale id", l.ProductID)
		}
	}

	totalsByProduct := map[string]float64{}
	for _, s := range repo.sales {
		totalsByProduct[s.ProductID] = s.Total
	}
	if totalsByProduct["p1"] != 20 {
		t.Errorf("expected sale total 20 for p1, got %v", totalsByProduct["p1"])
	}
	if totalsByProduct["p2"] != 15 {
		t.Errorf("expected sale total 15 for p2, got %v", totalsByProduct["p2"])
	}

	if repo.stock["p1"] != 3 || repo.stock["p2"] != 2 {
		t.Errorf("stock not decremented per line: %+v", repo.stock)
	}

	if !result.Cleared {
		t.Error("expected cart cleared")
	}
	if len(cart.Lines()) != 0 {
		t.Error("expected empty cart after commit")
	}

	wantBilled := 35 * (1 + DefaultTaxRate)
	if math.Abs(result.TotalBilled-wantBilled) > 1e-9 {
		t.Errorf("expected total billed %v, got %v", wantBilled, result.TotalBilled)
	}
}

func TestCommit_EmptyCart(t *testing.T) {
	committer := NewCommitter(newMockSaleRepo(), newMockStockCache())

	_, err := committer.Commit(context.Background(), "req-1", NewCart(DefaultTaxRate))
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got: %v", err)
	}
}

func TestCommit_DuplicateRequest(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)
	setStock(cache, repo, "p1", 10)

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Soda", 12, 10)

	if _, err := committer.Commit(context.Background(), "req-1", cart); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	cart.AddLine("p1", "Soda", 12, 10)
	_, err := committer.Commit(context.Background(), "req-1", cart)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}
	if len(repo.sales) != 1 {
		t.Errorf("duplicate request must not create sales, got %d", len(repo.sales))
	}
}

func TestCommit_PartialFailure(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "p1", 5)
	setStock(cache, repo, "p2", 0)

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Beans", 10, 5)
	// The ceiling snapshot is stale: another session already drained p2
	cart.AddLine("p2", "Bread", 5, 3)

	result, err := committer.Commit(context.Background(), "req-1", cart)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	var p1Res, p2Res LineResult
	for _, l := range result.Lines {
		switch l.ProductID {
		case "p1":
			p1Res = l
		case "p2":
			p2Res = l
		}
	}

	if p1Res.Err != nil {
		t.Errorf("independent line must still commit, got: %v", p1Res.Err)
	}
	if !errors.Is(p2Res.Err, domain.ErrStockExceeded) {
		t.Errorf("expected ErrStockExceeded for drained product, got: %v", p2Res.Err)
	}

	if result.Cleared {
		t.Error("cart must not report cleared when any line fails")
	}

	// Only the failed line stays behind; the committed one is gone
	remaining := cart.Lines()
	if len(remaining) != 1 || remaining[0].ProductID != "p2" {
		t.Errorf("expected only the failed line left in the cart, got %+v", remaining)
	}
	if len(repo.sales) != 1 {
		t.Errorf("expected exactly the succeeding line recorded, got %d sales", len(repo.sales))
	}
}

func TestCommit_RetryAfterPartialFailure(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "p1", 5)
	setStock(cache, repo, "p2", 0)

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Beans", 10, 5)
	cart.AddLine("p2", "Bread", 5, 3)

	if _, err := committer.Commit(context.Background(), "req-1", cart); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	// p2 gets restocked, the client retries with a fresh request id
	setStock(cache, repo, "p2", 3)

	result, err := committer.Commit(context.Background(), "req-2", cart)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !result.Cleared {
		t.Error("expected retry to clear the cart")
	}

	salesFor := map[string]int{}
	for _, s := range repo.sales {
		salesFor[s.ProductID]++
	}
	if salesFor["p1"] != 1 {
		t.Errorf("retry must not re-commit the recorded line, p1 sold %d times", salesFor["p1"])
	}
	if salesFor["p2"] != 1 {
		t.Errorf("expected the failed line committed once on retry, got %d", salesFor["p2"])
	}
	if repo.stock["p1"] != 4 {
		t.Errorf("expected p1 stock decremented exactly once, got %d", repo.stock["p1"])
	}
}

func TestCommit_CacheFaultFailsLine(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "p1", 5)
	cache.decrementErr = errors.New("redis gone")

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Beans", 10, 5)

	result, err := committer.Commit(context.Background(), "req-1", cart)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result.Lines[0].Err == nil {
		t.Error("expected line failure on cache fault")
	}
	if len(repo.sales) != 0 {
		t.Errorf("no sale may be recorded when the fast path faults, got %d", len(repo.sales))
	}
}

func TestCommit_StoreFaultRollsBackCache(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "p1", 5)
	repo.createErr = &domain.StoreError{Op: "insert sale", Err: errors.New("connection reset")}

	cart := NewCart(DefaultTaxRate)
	cart.AddLine("p1", "Beans", 10, 5)

	result, err := committer.Commit(context.Background(), "req-1", cart)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	var serr *domain.StoreError
	if !errors.As(result.Lines[0].Err, &serr) {
		t.Errorf("expected StoreError on the line, got: %v", result.Lines[0].Err)
	}

	// Mirrored stock restored after the failed insert
	if cache.stock["p1"] != 5 {
		t.Errorf("expected cache stock restored to 5, got %d", cache.stock["p1"])
	}
	if result.Cleared {
		t.Error("cart must not clear on failure")
	}
}

func TestCommit_SodaScenario(t *testing.T) {
	cache := newMockStockCache()
	repo := newMockSaleRepo()
	committer := NewCommitter(repo, cache)

	setStock(cache, repo, "soda", 3)

	cart := NewCart(DefaultTaxRate)
	for i := 0; i < 3; i++ {
		if err := cart.AddLine("soda", "Soda", 12, 3); err != nil {
			t.Fatalf("add %d failed: %v", i+1, err)
		}
	}
	if err := cart.AddLine("soda", "Soda", 12, 3); !errors.Is(err, domain.ErrStockExceeded) {
		t.Fatalf("expected 4th add rejected, got: %v", err)
	}

	result, err := committer.Commit(context.Background(), "req-soda", cart)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if len(repo.sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(repo.sales))
	}
	if repo.sales[0].Quantity != 3 || repo.sales[0].Total != 36 {
		t.Errorf("expected Sale{qty:3,total:36}, got {qty:%d,total:%v}", repo.sales[0].Quantity, repo.sales[0].Total)
	}
	if repo.stock["soda"] != 0 {
		t.Errorf("expected stock 0, got %d", repo.stock["soda"])
	}
	if !result.Cleared || len(cart.Lines()) != 0 {
		t.Error("expected cart cleared after full commit")
	}
}
