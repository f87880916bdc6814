// Package carttest provides an in-memory marketplace cart backend for tests.
package carttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go-surplus-storefront/internal/pkg/apperror"
	"go-surplus-storefront/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var (
	taxRate = decimal.RequireFromString("0.18")
	hundred = decimal.NewFromInt(100)
)

type Product struct {
	ID            string
	Title         string
	SupplierID    string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
}

type line struct {
	id        string
	productID string
	qty       int
}

type cartState struct {
	id     string
	lines  []line
	coupon string
}

type failure struct {
	status  int
	message string
}

// Backend serves the /cart routes of the marketplace API. Guest carts are
// keyed by sessionId, user carts by bearer token.
type Backend struct {
	mu       sync.Mutex
	products map[string]Product
	coupons  map[string]decimal.Decimal
	carts    map[string]*cartState
	failures map[string]failure
	calls    map[string]int
	merged   []string
	nextID   int
}

func NewBackend(products ...Product) *Backend {
	b := &Backend{
		products: make(map[string]Product),
		coupons:  map[string]decimal.Decimal{"SAVE10": decimal.NewFromInt(10)},
		carts:    make(map[string]*cartState),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
	}
	for _, p := range products {
		if p.OriginalPrice.IsZero() {
			p.OriginalPrice = p.Price
		}
		b.products[p.ID] = p
	}
	return b
}

// Server starts the backend on an httptest server closed with t.
func (b *Backend) Server(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	b.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (b *Backend) Routes(r gin.IRouter) {
	g := r.Group("/cart", b.record)
	g.GET("", b.get)
	g.POST("/add", b.add)
	g.PUT("/update/:id", b.update)
	g.DELETE("/remove/:id", b.remove)
	g.DELETE("/clear", b.clear)
	g.POST("/apply-coupon", b.applyCoupon)
	g.POST("/remove-coupon", b.removeCoupon)
	g.POST("/merge", b.merge)
}

// FailNext makes the next call to route (e.g. "PUT /cart/update/:id") fail.
func (b *Backend) FailNext(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, message: message}
}

// Calls reports how many times route was hit.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// MergedSessions lists the guest sessions merged so far, in order.
func (b *Backend) MergedSessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.merged...)
}

// GuestLines reports the item count held for a guest session.
func (b *Backend) GuestLines(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.carts["guest:"+sessionID]; ok {
		return len(c.lines)
	}
	return 0
}

func (b *Backend) record(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	b.mu.Lock()
	b.calls[route]++
	f, fail := b.failures[route]
	delete(b.failures, route)
	b.mu.Unlock()

	if fail {
		response.Error(c, f.status, apperror.CodeBackend, f.message, nil)
		c.Abort()
		return
	}
	c.Next()
}

type body struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
}

func (b *Backend) get(c *gin.Context) {
	owner, ok := b.owner(c, c.Query("sessionId"))
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cart, exists := b.carts[owner]
	if !exists {
		response.Success(c, http.StatusOK, "Cart is empty", nil)
		return
	}
	response.Success(c, http.StatusOK, "Cart retrieved", b.render(cart))
}

func (b *Backend) add(c *gin.Context) {
	var req body
	if !bind(c, &req) {
		return
	}
	owner, ok := b.owner(c, req.SessionID)
	if !ok {
		return
	}
	if req.Quantity < 1 {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Quantity must be at least 1", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.products[req.ProductID]; !found {
		response.Error(c, http.StatusNotFound, apperror.CodeNotFound, "Product not found", nil)
		return
	}
	cart := b.cartFor(owner)
	b.addLine(cart, req.ProductID, req.Quantity)
	response.Success(c, http.StatusOK, "Item added to cart", nil)
}

func (b *Backend) update(c *gin.Context) {
	var req body
	if !bind(c, &req) {
		return
	}
	owner, ok := b.owner(c, req.SessionID)
	if !ok {
		return
	}
	if req.Quantity < 1 {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Quantity must be at least 1", nil)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.carts[owner]
	idx := findLine(cart, c.Param("id"))
	if idx < 0 {
		response.Error(c, http.StatusNotFound, apperror.CodeNotFound, "Cart item not found", nil)
		return
	}
	cart.lines[idx].qty = req.Quantity
	response.Success(c, http.StatusOK, "Cart updated", nil)
}

func (b *Backend) remove(c *gin.Context) {
	owner, ok := b.owner(c, c.Query("sessionId"))
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.carts[owner]
	idx := findLine(cart, c.Param("id"))
	if idx < 0 {
		response.Error(c, http.StatusNotFound, apperror.CodeNotFound, "Cart item not found", nil)
		return
	}
	cart.lines = append(cart.lines[:idx], cart.lines[idx+1:]...)
	response.Success(c, http.StatusOK, "Item removed", nil)
}

func (b *Backend) clear(c *gin.Context) {
	owner, ok := b.owner(c, c.Query("sessionId"))
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, owner)
	response.Success(c, http.StatusOK, "Cart cleared", nil)
}

func (b *Backend) applyCoupon(c *gin.Context) {
	var req body
	if !bind(c, &req) {
		return
	}
	owner, ok := b.owner(c, req.SessionID)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if _, known := b.coupons[code]; !known {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid coupon code", nil)
		return
	}
	cart, exists := b.carts[owner]
	if !exists || len(cart.lines) == 0 {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Cart is empty", nil)
		return
	}
	cart.coupon = code
	response.Success(c, http.StatusOK, "Coupon applied", nil)
}

func (b *Backend) removeCoupon(c *gin.Context) {
	var req body
	if !bind(c, &req) {
		return
	}
	owner, ok := b.owner(c, req.SessionID)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cart, exists := b.carts[owner]; exists {
		cart.coupon = ""
	}
	response.Success(c, http.StatusOK, "Coupon removed", nil)
}

func (b *Backend) merge(c *gin.Context) {
	token := bearer(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "Login required", nil)
		return
	}
	var req body
	if !bind(c, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.merged = append(b.merged, req.SessionID)
	guest, exists := b.carts["guest:"+req.SessionID]
	if !exists {
		response.Success(c, http.StatusOK, "Nothing to merge", nil)
		return
	}
	user := b.cartFor("user:" + token)
	for _, l := range guest.lines {
		b.addLine(user, l.productID, l.qty)
	}
	if user.coupon == "" {
		user.coupon = guest.coupon
	}
	delete(b.carts, "guest:"+req.SessionID)
	response.Success(c, http.StatusOK, "Cart merged", nil)
}

func (b *Backend) owner(c *gin.Context, sessionID string) (string, bool) {
	if token := bearer(c); token != "" {
		return "user:" + token, true
	}
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Session ID is required", nil)
		return "", false
	}
	return "guest:" + sessionID, true
}

func (b *Backend) cartFor(owner string) *cartState {
	cart, ok := b.carts[owner]
	if !ok {
		b.nextID++
		cart = &cartState{id: fmt.Sprintf("cart-%d", b.nextID)}
		b.carts[owner] = cart
	}
	return cart
}

func (b *Backend) addLine(cart *cartState, productID string, qty int) {
	for i := range cart.lines {
		if cart.lines[i].productID == productID {
			cart.lines[i].qty += qty
			return
		}
	}
	b.nextID++
	cart.lines = append(cart.lines, line{id: fmt.Sprintf("item-%d", b.nextID), productID: productID, qty: qty})
}

// render prices the cart: subtotal at list price, savings against it, tax
// on the discounted goods value and the coupon taken off last.
func (b *Backend) render(cart *cartState) gin.H {
	items := make([]gin.H, 0, len(cart.lines))
	subtotal, savings := decimal.Zero, decimal.Zero

	for _, l := range cart.lines {
		p := b.products[l.productID]
		qty := decimal.NewFromInt(int64(l.qty))
		subtotal = subtotal.Add(p.OriginalPrice.Mul(qty))
		savings = savings.Add(p.OriginalPrice.Sub(p.Price).Mul(qty))
		items = append(items, gin.H{
			"id":            l.id,
			"productId":     p.ID,
			"title":         p.Title,
			"supplierId":    p.SupplierID,
			"price":         p.Price,
			"originalPrice": p.OriginalPrice,
			"quantity":      l.qty,
		})
	}

	goods := subtotal.Sub(savings)
	tax := goods.Mul(taxRate).Round(2)
	discount := decimal.Zero
	if pct, ok := b.coupons[cart.coupon]; ok {
		discount = goods.Mul(pct).Div(hundred).Round(2)
	}
	total := goods.Sub(discount).Add(tax)

	return gin.H{
		"id":    cart.id,
		"items": items,
		"pricing": gin.H{
			"subtotal":       subtotal,
			"tax":            tax,
			"shipping":       decimal.Zero,
			"platformFee":    decimal.Zero,
			"couponDiscount": discount,
			"totalSavings":   savings,
			"total":          total,
			"couponCode":     cart.coupon,
		},
	}
}

func findLine(cart *cartState, id string) int {
	if cart == nil {
		return -1
	}
	for i, l := range cart.lines {
		if l.id == id {
			return i
		}
	}
	return -1
}

func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func bind(c *gin.Context, req *body) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, apperror.CodeValidation, "Invalid request body", nil)
		return false
	}
	return true
}
