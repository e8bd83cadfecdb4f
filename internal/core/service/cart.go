package service

import (
	"sync"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

// DefaultTaxRate is the IVA applied on top of the subtotal.
const DefaultTaxRate = 0.16

// Cart accumulates line items for one session before checkout. It is
// never persisted; each session owns its own Cart.
type Cart struct {
	mu      sync.Mutex
	taxRate float64
	lines   []domain.CartLine
}

func NewCart(taxRate float64) *Cart {
	return &Cart{taxRate: taxRate}
}

// AddLine adds one unit of a product. The name, price and ceiling are
// snapshots of the product at add time. Quantity never passes the
// ceiling: the add that would is rejected with domain.ErrStockExceeded
// and the line is left as it was.
func (c *Cart) AddLine(productID, name string, unitPrice float64, stockCeiling int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stockCeiling <= 0 {
		return domain.ErrStockExceeded
	}

	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if c.lines[i].Quantity >= c.lines[i].StockCeiling {
			return domain.ErrStockExceeded
		}
		c.lines[i].Quantity++
		return nil
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID:    productID,
		Name:         name,
		UnitPrice:    unitPrice,
		Quantity:     1,
		StockCeiling: stockCeiling,
	})
	return nil
}

// Lines returns a snapshot of the current lines.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals computes subtotal, tax and total from the current lines. Pure
// with respect to cart state.
func (c *Cart) Totals() domain.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	var subtotal float64
	for _, l := range c.lines {
		subtotal += l.UnitPrice * float64(l.Quantity)
	}
	tax := subtotal * c.taxRate
	return domain.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// RemoveLine drops the line for a product, if present. No-op when the
// product is not in the cart.
func (c *Cart) RemoveLine(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear discards all lines. Idempotent.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}
