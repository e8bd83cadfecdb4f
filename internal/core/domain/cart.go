package domain

// CartLine is one product accumulated in a session's cart. Name, price
// and stock ceiling are snapshots taken at add time; they are used for
// display and for pinning the quantity, never for the committed
// decrement.
type CartLine struct {
	ProductID    string
	Name         string
	UnitPrice    float64
	Quantity     int
	StockCeiling int
}

// Totals is the money breakdown of a cart.
type Totals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}
