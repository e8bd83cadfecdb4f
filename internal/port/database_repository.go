package port

import (
	"context"

	"github.com/mveracruz/tiendita/internal/core/domain"
)

// ListOrder selects the catalog ordering. Name ascending is the
// documented default; newest-first matches the sales report view.
type ListOrder int

const (
	OrderByName ListOrder = iota
	OrderByNewest
)

type ProductRepository interface {
	// Insert persists a new product.
	Insert(ctx context.Context, p domain.Product) error

	// Update overwrites name, price, cost and stock of an existing
	// product; returns domain.ErrNotFound when the id is absent.
	Update(ctx context.Context, p domain.Product) error

	// Delete removes a product; returns domain.ErrNotFound when the id
	// is absent. Historical sales referencing it are left untouched.
	Delete(ctx context.Context, id string) error

	// GetByID returns domain.ErrNotFound when the id is absent.
	GetByID(ctx context.Context, id string) (domain.Product, error)

	// List returns the live catalog in the requested order.
	List(ctx context.Context, order ListOrder) ([]domain.Product, error)

	// Count returns the number of live products, for the capacity gate.
	Count(ctx context.Context) (int, error)
}

type SaleRepository interface {
	// CreateSale records a sale and decrements the product's stock in a
	// single transaction, guarded by `stock >= quantity`. Returns
	// domain.ErrStockExceeded (insert rolled back) when the guard
	// fails, domain.ErrNotFound when the product row is gone.
	CreateSale(ctx context.Context, sale domain.Sale) error

	// ListJoined returns sales newest first, each joined with its
	// product when that still exists.
	ListJoined(ctx context.Context) ([]domain.SaleRow, error)
}
