package storefront

import (
	"net/http"
	"time"

	"go-surplus-storefront/internal/cart"
	"go-surplus-storefront/internal/currency"
	"go-surplus-storefront/internal/middleware"
	"go-surplus-storefront/internal/pkg/apperror"
	"go-surplus-storefront/internal/pkg/response"
	"go-surplus-storefront/internal/pkg/result"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	registry *Registry
	currency *currency.Service
}

func NewHandler(registry *Registry, rates *currency.Service) *Handler {
	return &Handler{registry: registry, currency: rates}
}

func (h *Handler) client(c *gin.Context) *Client {
	return h.registry.Get(middleware.ClientID(c))
}

// Subject identifies the caller for RequireRole.
func (h *Handler) Subject(c *gin.Context) middleware.Subject {
	cl := h.client(c)
	return middleware.Subject{Key: cl.ID, Identity: cl.Auth, Notifier: cl.Toasts}
}

func (h *Handler) GetCart(c *gin.Context) {
	cl := h.client(c)
	h.cartResult(c, cl, "Cart retrieved", cl.Cart.FetchCart(c.Request.Context()))
}

func (h *Handler) AddItem(c *gin.Context) {
	cl := h.client(c)

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	res := cl.Cart.AddToCart(c.Request.Context(), req.ProductID, req.Quantity, req.SkipRefresh)
	h.cartResult(c, cl, "Item added to cart", res)
}

// UpdateQty answers with the optimistic cart; pricing catches up on the
// next read.
func (h *Handler) UpdateQty(c *gin.Context) {
	cl := h.client(c)

	var req UpdateQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	res := cl.Cart.UpdateQuantity(c.Request.Context(), c.Param("itemId"), req.Quantity)
	h.cartResult(c, cl, "Cart updated", res)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	cl := h.client(c)
	h.cartResult(c, cl, "Item removed", cl.Cart.RemoveItem(c.Request.Context(), c.Param("itemId")))
}

func (h *Handler) ClearCart(c *gin.Context) {
	cl := h.client(c)
	h.cartResult(c, cl, "Cart cleared", cl.Cart.ClearCart(c.Request.Context()))
}

func (h *Handler) ApplyCoupon(c *gin.Context) {
	cl := h.client(c)

	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	h.cartResult(c, cl, "Coupon applied", cl.Cart.ApplyCoupon(c.Request.Context(), req.Code))
}

func (h *Handler) RemoveCoupon(c *gin.Context) {
	cl := h.client(c)
	h.cartResult(c, cl, "Coupon removed", cl.Cart.RemoveCoupon(c.Request.Context()))
}

func (h *Handler) SetLocation(c *gin.Context) {
	cl := h.client(c)

	var loc cart.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		invalidBody(c)
		return
	}

	cl.Cart.SetLocation(&loc)
	h.cartResult(c, cl, "Location updated", cl.Cart.FetchCart(c.Request.Context()))
}

func (h *Handler) Session(c *gin.Context) {
	cl := h.client(c)
	ctx := c.Request.Context()

	if cl.Auth.IsAuthenticated(ctx) {
		response.Success(c, http.StatusOK, "Session resolved", SessionResponse{Authenticated: true})
		return
	}
	response.Success(c, http.StatusOK, "Session resolved", SessionResponse{
		SessionID: cl.Sessions.GetOrCreateSessionID(ctx),
	})
}

func (h *Handler) Login(c *gin.Context) {
	cl := h.client(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	u, err := cl.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, cl, err, "Login failed")
		return
	}
	response.Success(c, http.StatusOK, "Login successful", gin.H{
		"user":   u,
		"cart":   cl.Cart.Snapshot(),
		"toasts": cl.Toasts.Drain(),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	cl := h.client(c)

	if err := cl.Auth.Logout(c.Request.Context()); err != nil {
		h.fail(c, cl, err, "Logout failed")
		return
	}
	response.Success(c, http.StatusOK, "Logged out", nil)
}

func (h *Handler) Me(c *gin.Context) {
	cl := h.client(c)

	u, err := cl.Auth.Me(c.Request.Context())
	if err != nil {
		h.fail(c, cl, err, "Failed to load profile")
		return
	}
	response.Success(c, http.StatusOK, "Profile retrieved", u)
}

func (h *Handler) Rates(c *gin.Context) {
	res := RatesResponse{
		Base:      currency.Base,
		Rates:     h.currency.Rates(),
		Supported: h.currency.SupportedCurrencies(),
	}
	res.Symbols = make(map[string]string, len(res.Supported))
	for _, code := range res.Supported {
		res.Symbols[code] = currency.Symbol(code)
	}
	if t := h.currency.LastUpdated(); !t.IsZero() {
		res.LastUpdated = t.Format(time.RFC3339)
	}
	response.Success(c, http.StatusOK, "Exchange rates", res)
}

func (h *Handler) FormatPrices(c *gin.Context) {
	var req FormatRequest
	// fraction digits outside 0..20 are rejected by the binding
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}

	var opts []currency.FormatOption
	if req.MinFractionDigits != nil || req.MaxFractionDigits != nil {
		lo, hi := 0, 0
		if req.MinFractionDigits != nil {
			lo = *req.MinFractionDigits
		}
		if req.MaxFractionDigits != nil {
			hi = *req.MaxFractionDigits
		}
		opts = append(opts, currency.WithFractionDigits(lo, hi))
	}
	if req.HideSymbol {
		opts = append(opts, currency.WithoutSymbol())
	}

	out := make([]string, len(req.Amounts))
	for i, amount := range req.Amounts {
		out[i] = h.currency.FormatPrice(amount, req.Currency, opts...)
	}
	response.Success(c, http.StatusOK, "Prices formatted", FormatResponse{Currency: req.Currency, Formatted: out})
}

// Dashboard serves the landing data of a role-gated area.
func (h *Handler) Dashboard(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	cl := h.client(c)
	response.Success(c, http.StatusOK, "Dashboard", gin.H{
		"user":   u,
		"toasts": cl.Toasts.Drain(),
	})
}

func (h *Handler) Toasts(c *gin.Context) {
	response.Success(c, http.StatusOK, "Notifications", h.client(c).Toasts.Drain())
}

func (h *Handler) cartResult(c *gin.Context, cl *Client, message string, res result.Result[cart.State]) {
	if res.Success() {
		response.Success(c, http.StatusOK, message, CartResponse{Cart: res.Value(), Toasts: cl.Toasts.Drain()})
		return
	}

	info := res.Err()
	response.Error(c, statusOf(info.Status), info.Code, info.Message, CartResponse{
		Cart:   cl.Cart.Snapshot(),
		Toasts: cl.Toasts.Drain(),
	})
}

func (h *Handler) fail(c *gin.Context, cl *Client, err error, fallback string) {
	info := result.Info(err, fallback)
	response.Error(c, statusOf(info.Status), info.Code, info.Message, gin.H{"toasts": cl.Toasts.Drain()})
}

func invalidBody(c *gin.Context) {
	response.Error(c, http.StatusBadRequest, apperror.CodeInvalidInput, "Invalid request body", nil)
}

func statusOf(status int) int {
	if status == 0 {
		return http.StatusInternalServerError
	}
	return status
}
