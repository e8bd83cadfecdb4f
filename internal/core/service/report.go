package service

import (
	"context"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/port"
)

// Report aggregates sales history into revenue, units and profit.
type Report struct {
	sales port.SaleRepository
}

func NewReport(sales port.SaleRepository) *Report {
	return &Report{sales: sales}
}

type Summary struct {
	GrossRevenue float64
	UnitsSold    int
	TotalCost    float64
	NetProfit    float64
}

// Summary loads the joined sales history and aggregates it. Rows whose
// product was deleted come back with the placeholder name and no cost
// contribution; they never fail the report.
func (s *Report) Summary(ctx context.Context) ([]domain.SaleRow, Summary, error) {
	rows, err := s.sales.ListJoined(ctx)
	if err != nil {
		return nil, Summary{}, err
	}
	return rows, ComputeSummary(rows), nil
}

// ComputeSummary is a pure aggregation over joined sale rows.
func ComputeSummary(rows []domain.SaleRow) Summary {
	var sum Summary
	for _, r := range rows {
		sum.GrossRevenue += r.Total
		sum.UnitsSold += r.Quantity
		if r.Resolved {
			sum.TotalCost += r.ProductCost * float64(r.Quantity)
		}
	}
	sum.NetProfit = sum.GrossRevenue - sum.TotalCost
	return sum
}
