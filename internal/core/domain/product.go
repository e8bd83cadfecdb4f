package domain

import "time"

type StockStatus string

const (
	StockAvailable StockStatus = "available"
	StockLow       StockStatus = "low"
	StockOut       StockStatus = "out"
)

// lowStockThreshold marks products the POS grid flags before they run out.
const lowStockThreshold = 5

type Product struct {
	ID        string
	Name      string
	Price     float64
	Cost      float64
	Stock     int
	CreatedAt time.Time
}

// StatusOf classifies a stock level for display purposes.
func StatusOf(stock int) StockStatus {
	switch {
	case stock <= 0:
		return StockOut
	case stock <= lowStockThreshold:
		return StockLow
	default:
		return StockAvailable
	}
}
