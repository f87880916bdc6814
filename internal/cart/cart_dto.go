package cart

import (
	"fmt"

	"go-surplus-storefront/internal/pkg/apperror"

	"github.com/shopspring/decimal"
)

// Item is one product line in the cart. Money is INR.
type Item struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"productId"`
	Title         string          `json:"title"`
	Image         string          `json:"image,omitempty"`
	SupplierID    string          `json:"supplierId,omitempty"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Quantity      int             `json:"quantity"`
}

// Pricing is the server-computed breakdown for the whole cart.
type Pricing struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Shipping       decimal.Decimal `json:"shipping"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	TotalSavings   decimal.Decimal `json:"totalSavings"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     string          `json:"couponCode,omitempty"`
}

// ExpectedTotal recomputes the total from its components, floored at zero.
func (p Pricing) ExpectedTotal() decimal.Decimal {
	t := p.Subtotal.
		Sub(p.TotalSavings).
		Sub(p.CouponDiscount).
		Add(p.Tax).
		Add(p.Shipping).
		Add(p.PlatformFee)
	if t.IsNegative() {
		return decimal.Zero
	}
	return t
}

type Cart struct {
	ID      string   `json:"id"`
	Items   []Item   `json:"items"`
	Pricing *Pricing `json:"pricing"`
}

// Location lets the backend price shipping and tax for a destination.
type Location struct {
	Pincode string `json:"pincode,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	SessionID string `json:"sessionId,omitempty"`
}

type UpdateQtyRequest struct {
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	SessionID string `json:"sessionId,omitempty"`
}

type CouponRequest struct {
	Code      string `json:"code" validate:"required"`
	SessionID string `json:"sessionId,omitempty"`
}

type MergeRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type sessionBody struct {
	SessionID string `json:"sessionId,omitempty"`
}

// Query scopes a cart read to a guest session and an optional destination.
type Query struct {
	SessionID string
	Location  *Location
}

// Wire schemas. Everything the backend sends passes through toDomain before
// the store sees it.

type cartItemDTO struct {
	ID            string              `json:"id" validate:"required"`
	ProductID     string              `json:"productId" validate:"required"`
	Title         string              `json:"title"`
	Image         string              `json:"image"`
	SupplierID    string              `json:"supplierId"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	Quantity      int                 `json:"quantity" validate:"min=1"`
}

type pricingDTO struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Shipping       decimal.Decimal `json:"shipping"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	TotalSavings   decimal.Decimal `json:"totalSavings"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     string          `json:"couponCode"`
}

type cartDTO struct {
	ID      string        `json:"id"`
	Items   []cartItemDTO `json:"items" validate:"dive"`
	Pricing *pricingDTO   `json:"pricing"`
}

func (d cartDTO) toDomain() (*Cart, error) {
	c := &Cart{ID: d.ID, Items: make([]Item, 0, len(d.Items))}

	for _, it := range d.Items {
		if it.Price.IsNegative() {
			return nil, invalid("item %s has a negative price", it.ID)
		}
		original := it.Price
		if it.OriginalPrice.Valid {
			original = it.OriginalPrice.Decimal
		}
		if original.IsNegative() {
			return nil, invalid("item %s has a negative original price", it.ID)
		}
		c.Items = append(c.Items, Item{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Title:         it.Title,
			Image:         it.Image,
			SupplierID:    it.SupplierID,
			Price:         it.Price,
			OriginalPrice: original,
			Quantity:      it.Quantity,
		})
	}

	if d.Pricing != nil {
		p := Pricing(*d.Pricing)
		for name, v := range map[string]decimal.Decimal{
			"subtotal":       p.Subtotal,
			"tax":            p.Tax,
			"shipping":       p.Shipping,
			"platformFee":    p.PlatformFee,
			"couponDiscount": p.CouponDiscount,
			"totalSavings":   p.TotalSavings,
			"total":          p.Total,
		} {
			if v.IsNegative() {
				return nil, invalid("pricing %s is negative", name)
			}
		}
		c.Pricing = &p
	}

	return c, nil
}

func invalid(format string, args ...any) error {
	return apperror.ErrInvalidResponse.Wrap(fmt.Errorf(format, args...))
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func (c *Cart) clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = cloneItems(c.Items)
	cp.Pricing = c.Pricing.clone()
	return &cp
}

func (p *Pricing) clone() *Pricing {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
