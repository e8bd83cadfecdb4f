package domain

import "time"

// Sale is immutable once recorded. ProductID is a weak reference: the
// product may be deleted later and the sale must survive it.
type Sale struct {
	ID        string
	ProductID string
	Quantity  int
	Total     float64
	CreatedAt time.Time
}

// DeletedProductName is what reports show for a sale whose product is gone.
const DeletedProductName = "deleted product"

// SaleRow is a sale joined with its product, as reports consume it.
// Product fields are zero-valued when the weak reference is dangling.
type SaleRow struct {
	Sale
	ProductName string
	ProductCost float64
	// Resolved is false when the referenced product no longer exists.
	Resolved bool
}

// Profit is the margin this row contributed. With no cost basis to
// subtract, a dangling row reports zero rather than guessing.
func (r SaleRow) Profit() float64 {
	if !r.Resolved {
		return 0
	}
	return r.Total - r.ProductCost*float64(r.Quantity)
}
