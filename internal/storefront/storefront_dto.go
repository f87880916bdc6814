package storefront

import (
	"go-surplus-storefront/internal/cart"
	"go-surplus-storefront/internal/notify"

	"github.com/shopspring/decimal"
)

type AddItemRequest struct {
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
	SkipRefresh bool   `json:"skipRefresh"`
}

type UpdateQtyRequest struct {
	Quantity int `json:"quantity"`
}

type CouponRequest struct {
	Code string `json:"code"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type FormatRequest struct {
	Amounts           []*decimal.Decimal `json:"amounts"`
	Currency          string             `json:"currency"`
	MinFractionDigits *int               `json:"minFractionDigits" binding:"omitempty,min=0,max=20"`
	MaxFractionDigits *int               `json:"maxFractionDigits" binding:"omitempty,min=0,max=20"`
	HideSymbol        bool               `json:"hideSymbol"`
}

type CartResponse struct {
	Cart   cart.State     `json:"cart"`
	Toasts []notify.Toast `json:"toasts"`
}

type SessionResponse struct {
	SessionID     string `json:"sessionId,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

type RatesResponse struct {
	Base        string                     `json:"base"`
	Rates       map[string]decimal.Decimal `json:"rates"`
	Supported   []string                   `json:"supported"`
	Symbols     map[string]string          `json:"symbols"`
	LastUpdated string                     `json:"lastUpdated,omitempty"`
}

type FormatResponse struct {
	Currency  string   `json:"currency"`
	Formatted []string `json:"formatted"`
}
