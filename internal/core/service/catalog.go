package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/port"
)

// DefaultCatalogCapacity caps the number of live products.
const DefaultCatalogCapacity = 50

// Catalog owns product records: validation, the capacity gate, and the
// margin rule. Observers learn about mutations through the change feed,
// not through return values.
type Catalog struct {
	products     port.ProductRepository
	capacity     int
	strictMargin bool
}

// NewCatalog builds a catalog manager. With strictMargin set, listings
// priced at or below cost are rejected.
func NewCatalog(products port.ProductRepository, capacity int, strictMargin bool) *Catalog {
	return &Catalog{products: products, capacity: capacity, strictMargin: strictMargin}
}

type ProductInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Cost  float64 `json:"cost"`
	Stock int     `json:"stock"`
}

func (s *Catalog) validate(in ProductInput) error {
	if in.Name == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if in.Price <= 0 {
		return &domain.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if in.Cost < 0 {
		return &domain.ValidationError{Field: "cost", Reason: "must not be negative"}
	}
	if in.Stock < 0 {
		return &domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if s.strictMargin && in.Price <= in.Cost {
		return &domain.ValidationError{Field: "price", Reason: "must exceed cost"}
	}
	return nil
}

func (s *Catalog) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := s.validate(in); err != nil {
		return domain.Product{}, err
	}

	count, err := s.products.Count(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if count >= s.capacity {
		return domain.Product{}, domain.ErrCapacity
	}

	p := domain.Product{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Price:     in.Price,
		Cost:      in.Cost,
		Stock:     in.Stock,
		CreatedAt: time.Now(),
	}
	if err := s.products.Insert(ctx, p); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Catalog) Update(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	if err := s.validate(in); err != nil {
		return domain.Product{}, err
	}

	current, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	current.Name = in.Name
	current.Price = in.Price
	current.Cost = in.Cost
	current.Stock = in.Stock
	if err := s.products.Update(ctx, current); err != nil {
		return domain.Product{}, err
	}
	return current, nil
}

// Delete is irreversible and gated on the caller's explicit consent.
// Historical sales keep their weak reference to the deleted id.
func (s *Catalog) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return domain.ErrNotConfirmed
	}
	return s.products.Delete(ctx, id)
}

func (s *Catalog) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns the live catalog. port.OrderByName is the default
// ordering the views use.
func (s *Catalog) List(ctx context.Context, order port.ListOrder) ([]domain.Product, error) {
	return s.products.List(ctx, order)
}
