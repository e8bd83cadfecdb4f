package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/port"
)

// opTimeout bounds each store call during checkout so a hung backend
// surfaces as an error instead of blocking the session.
const opTimeout = 5 * time.Second

// Committer turns a cart into sale records and stock decrements. Lines
// commit independently: one line failing does not abort the rest.
type Committer struct {
	sales port.SaleRepository
	cache port.StockCache
}

func NewCommitter(sales port.SaleRepository, cache port.StockCache) *Committer {
	return &Committer{sales: sales, cache: cache}
}

// LineResult is the outcome of one cart line. Err is nil when the sale
// was recorded and the stock decremented.
type LineResult struct {
	ProductID string
	SaleID    string
	Quantity  int
	Total     float64
	Err       error
}

// CommitResult reports per-line outcomes and, when every line
// succeeded, the total billed for the receipt.
type CommitResult struct {
	Lines       []LineResult
	TotalBilled float64
	Cleared     bool
}

// Commit processes each cart line: a cache fast-path rejects lines the
// mirrored stock cannot cover, then one transaction inserts the sale
// and conditionally decrements the product's stock. The add-time
// ceiling snapshot is never trusted for the decrement; the store guard
// `stock >= quantity` decides. On full success the cart is cleared and
// the taxed total returned. Committed lines always leave the cart, so
// retrying after a partial failure re-attempts only the failed lines
// and never double-sells the ones already recorded.
func (s *Committer) Commit(ctx context.Context, requestID string, cart *Cart) (CommitResult, error) {
	lines := cart.Lines()
	if len(lines) == 0 {
		return CommitResult{}, domain.ErrEmptyCart
	}

	idempotencyKey := fmt.Sprintf("checkout:%s", requestID)
	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return CommitResult{}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return CommitResult{}, domain.ErrDuplicateRequest
	}

	totals := cart.Totals()

	result := CommitResult{Lines: make([]LineResult, 0, len(lines))}
	allOK := true
	for _, line := range lines {
		res := s.commitLine(ctx, line)
		if res.Err != nil {
			allOK = false
		} else {
			// The sale is recorded; its line must not survive to be
			// retried.
			cart.RemoveLine(line.ProductID)
		}
		result.Lines = append(result.Lines, res)
	}

	if allOK {
		cart.Clear()
		result.TotalBilled = totals.Total
		result.Cleared = true
	}
	return result, nil
}

func (s *Committer) commitLine(ctx context.Context, line domain.CartLine) LineResult {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res := LineResult{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Total:     line.UnitPrice * float64(line.Quantity),
	}

	ok, err := s.cache.DecrementStock(ctx, line.ProductID, line.Quantity)
	if err != nil {
		res.Err = fmt.Errorf("stock decrement failed: %w", err)
		return res
	}
	if !ok {
		res.Err = domain.ErrStockExceeded
		return res
	}

	sale := domain.Sale{
		ID:        uuid.NewString(),
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Total:     res.Total,
		CreatedAt: time.Now(),
	}

	if err := s.sales.CreateSale(ctx, sale); err != nil {
		// Restore the mirrored stock; the transaction already rolled
		// back the authoritative row.
		if rollbackErr := s.cache.IncrementStock(ctx, line.ProductID, line.Quantity); rollbackErr != nil {
			log.Printf("CRITICAL: cache rollback failed for product %s: %v", line.ProductID, rollbackErr)
		}
		res.Err = err
		return res
	}

	res.SaleID = sale.ID
	return res
}
