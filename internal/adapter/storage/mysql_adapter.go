package storage

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/port"
)

// MySQLAdapter implements the product and sale repositories on a shared
// *sql.DB. Every successful mutation publishes a change event so other
// sessions re-fetch.
type MySQLAdapter struct {
	db   *sql.DB
	feed port.ChangeFeed
}

func NewMySQLAdapter(db *sql.DB, feed port.ChangeFeed) *MySQLAdapter {
	return &MySQLAdapter{db: db, feed: feed}
}

func (m *MySQLAdapter) publish(ctx context.Context, collection string, event domain.EventType) {
	if m.feed == nil {
		return
	}
	if err := m.feed.Publish(ctx, domain.Change{Collection: collection, Event: event}); err != nil {
		log.Printf("failed to publish %s %s change: %v", collection, event, err)
	}
}

func (m *MySQLAdapter) Insert(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, cost, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.Cost, p.Stock, p.CreatedAt,
	)
	if err != nil {
		return &domain.StoreError{Op: "insert product", Err: err}
	}

	m.publish(ctx, domain.CollectionProducts, domain.EventInsert)
	return nil
}

func (m *MySQLAdapter) Update(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products SET name = ?, price = ?, cost = ?, stock = ?
		WHERE id = ?`,
		p.Name, p.Price, p.Cost, p.Stock, p.ID,
	)
	if err != nil {
		return &domain.StoreError{Op: "update product", Err: err}
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// A no-op update of identical values also reports zero rows,
		// so confirm absence before calling it not found.
		if _, getErr := m.GetByID(ctx, p.ID); getErr != nil {
			return getErr
		}
	}

	m.publish(ctx, domain.CollectionProducts, domain.EventUpdate)
	return nil
}

func (m *MySQLAdapter) Delete(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return &domain.StoreError{Op: "delete product", Err: err}
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	m.publish(ctx, domain.CollectionProducts, domain.EventDelete)
	return nil
}

func (m *MySQLAdapter) GetByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, cost, stock, created_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, &domain.StoreError{Op: "query product", Err: err}
	}
	return p, nil
}

func (m *MySQLAdapter) List(ctx context.Context, order port.ListOrder) ([]domain.Product, error) {
	query := `
		SELECT id, name, price, cost, stock, created_at
		FROM products ORDER BY name ASC`
	if order == port.OrderByNewest {
		query = `
		SELECT id, name, price, cost, stock, created_at
		FROM products ORDER BY created_at DESC`
	}

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.StoreError{Op: "list products", Err: err}
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.CreatedAt); err != nil {
			return nil, &domain.StoreError{Op: "scan product", Err: err}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list products", Err: err}
	}
	return products, nil
}

func (m *MySQLAdapter) Count(ctx context.Context) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, &domain.StoreError{Op: "count products", Err: err}
	}
	return count, nil
}

// CreateSale records the sale and decrements stock in one transaction.
// The `stock >= quantity` guard is the authority on oversell: when it
// rejects, the sale insert rolls back with it.
func (m *MySQLAdapter) CreateSale(ctx context.Context, sale domain.Sale) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, product_id, quantity, total, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sale.ID, sale.ProductID, sale.Quantity, sale.Total, sale.CreatedAt,
	)
	if err != nil {
		return &domain.StoreError{Op: "insert sale", Err: err}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?
		WHERE id = ? AND stock >= ?`,
		sale.Quantity, sale.ProductID, sale.Quantity,
	)
	if err != nil {
		return &domain.StoreError{Op: "decrement stock", Err: err}
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, sale.ProductID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrStockExceeded
	}

	if err := tx.Commit(); err != nil {
		return &domain.StoreError{Op: "commit sale", Err: err}
	}

	m.publish(ctx, domain.CollectionSales, domain.EventInsert)
	m.publish(ctx, domain.CollectionProducts, domain.EventUpdate)
	return nil
}

// ListJoined left-joins each sale with its product. NULL product
// columns mean the weak reference is dangling; the row still comes back
// with the placeholder name and a zero cost.
func (m *MySQLAdapter) ListJoined(ctx context.Context) ([]domain.SaleRow, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT s.id, s.product_id, s.quantity, s.total, s.created_at, p.name, p.cost
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list sales", Err: err}
	}
	defer rows.Close()

	var out []domain.SaleRow
	for rows.Next() {
		var r domain.SaleRow
		var name sql.NullString
		var cost sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Quantity, &r.Total, &r.CreatedAt, &name, &cost); err != nil {
			return nil, &domain.StoreError{Op: "scan sale", Err: err}
		}
		if name.Valid {
			r.Resolved = true
			r.ProductName = name.String
			r.ProductCost = cost.Float64
		} else {
			r.ProductName = domain.DeletedProductName
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list sales", Err: err}
	}
	return out, nil
}
