package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mveracruz/tiendita/internal/core/domain"
	"github.com/mveracruz/tiendita/internal/core/service"
	"github.com/mveracruz/tiendita/internal/port"
)

// sessionHeader identifies the browser tab owning a cart. Each session
// gets its own Cart; nothing cart-related is shared between sessions.
const sessionHeader = "X-Session-ID"

type HTTPHandler struct {
	catalog    *service.Catalog
	committer  *service.Committer
	report     *service.Report
	propagator *service.Propagator
	taxRate    float64

	mu    sync.Mutex
	carts map[string]*service.Cart
}

func NewHTTPHandler(catalog *service.Catalog, committer *service.Committer, report *service.Report, propagator *service.Propagator, taxRate float64) *HTTPHandler {
	return &HTTPHandler{
		catalog:    catalog,
		committer:  committer,
		report:     report,
		propagator: propagator,
		taxRate:    taxRate,
		carts:      make(map[string]*service.Cart),
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/events", h.Events)

	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/products", h.CreateProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)

	r.GET("/cart", h.GetCart)
	r.POST("/cart/items", h.AddToCart)
	r.DELETE("/cart", h.ClearCart)
	r.POST("/checkout", h.Checkout)

	r.GET("/report", h.Report)
}

func (h *HTTPHandler) cartFor(c *gin.Context) (*service.Cart, bool) {
	session := c.GetHeader(sessionHeader)
	if session == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + sessionHeader + " header"})
		return nil, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	cart, ok := h.carts[session]
	if !ok {
		cart = service.NewCart(h.taxRate)
		h.carts[session] = cart
	}
	return cart, true
}

// respondError maps the error taxonomy onto status codes. Every failure
// is reported once, as its own message.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCapacity),
		errors.Is(err, domain.ErrStockExceeded),
		errors.Is(err, domain.ErrDuplicateRequest):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrNotConfirmed):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type productResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Price     float64            `json:"price"`
	Cost      float64            `json:"cost"`
	Stock     int                `json:"stock"`
	Status    domain.StockStatus `json:"status"`
	CreatedAt string             `json:"created_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Cost:      p.Cost,
		Stock:     p.Stock,
		Status:    domain.StatusOf(p.Stock),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	order := port.OrderByName
	if c.Query("order") == "newest" {
		order = port.OrderByNewest
	}

	products, err := h.catalog.List(c.Request.Context(), order)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(p))
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.catalog.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id"), confirmed); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type cartResponse struct {
	Lines  []domain.CartLine `json:"lines"`
	Totals domain.Totals     `json:"totals"`
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	cart, ok := h.cartFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: cart.Lines(), Totals: cart.Totals()})
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
}

// AddToCart snapshots the product as it is right now: name, price and
// stock ceiling are frozen into the line.
func (h *HTTPHandler) AddToCart(c *gin.Context) {
	cart, ok := h.cartFor(c)
	if !ok {
		return
	}

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	p, err := h.catalog.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := cart.AddLine(p.ID, p.Name, p.Price, p.Stock); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: cart.Lines(), Totals: cart.Totals()})
}

func (h *HTTPHandler) ClearCart(c *gin.Context) {
	cart, ok := h.cartFor(c)
	if !ok {
		return
	}
	cart.Clear()
	c.Status(http.StatusNoContent)
}

type checkoutRequest struct {
	RequestID string `json:"request_id"`
}

type lineResultResponse struct {
	ProductID string  `json:"product_id"`
	SaleID    string  `json:"sale_id,omitempty"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
	Error     string  `json:"error,omitempty"`
}

type checkoutResponse struct {
	Lines       []lineResultResponse `json:"lines"`
	TotalBilled float64              `json:"total_billed"`
	Cleared     bool                 `json:"cleared"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	cart, ok := h.cartFor(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required"})
		return
	}

	result, err := h.committer.Commit(c.Request.Context(), req.RequestID, cart)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := checkoutResponse{
		Lines:       make([]lineResultResponse, 0, len(result.Lines)),
		TotalBilled: result.TotalBilled,
		Cleared:     result.Cleared,
	}
	for _, l := range result.Lines {
		lr := lineResultResponse{
			ProductID: l.ProductID,
			SaleID:    l.SaleID,
			Quantity:  l.Quantity,
			Total:     l.Total,
		}
		if l.Err != nil {
			lr.Error = l.Err.Error()
		}
		resp.Lines = append(resp.Lines, lr)
	}

	status := http.StatusOK
	if !result.Cleared {
		// Some lines failed; the client gets one message per failure.
		status = http.StatusConflict
	}
	c.JSON(status, resp)
}

type saleRowResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
	Profit      float64 `json:"profit"`
	CreatedAt   string  `json:"created_at"`
}

type reportResponse struct {
	Rows    []saleRowResponse `json:"rows"`
	Summary service.Summary   `json:"summary"`
}

func (h *HTTPHandler) Report(c *gin.Context) {
	rows, summary, err := h.report.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := reportResponse{Rows: make([]saleRowResponse, 0, len(rows)), Summary: summary}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, saleRowResponse{
			ID:          r.ID,
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			Total:       r.Total,
			Profit:      r.Profit(),
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Events streams collection-change notifications so browser sessions
// can re-fetch. The payload names the collection only; clients pull the
// fresh data themselves.
func (h *HTTPHandler) Events(c *gin.Context) {
	events := make(chan string, 8)
	register := func(collection string) func() {
		return h.propagator.Register(collection, func(context.Context) {
			select {
			case events <- collection:
			default:
				// Slow client; it re-fetches on the next event anyway.
			}
		})
	}
	removeProducts := register(domain.CollectionProducts)
	defer removeProducts()
	removeSales := register(domain.CollectionSales)
	defer removeSales()

	c.Stream(func(w io.Writer) bool {
		select {
		case collection := <-events:
			c.SSEvent("change", collection)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
