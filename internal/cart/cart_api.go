package cart

import (
	"context"
	"net/http"
	"net/url"

	"go-surplus-storefront/internal/apiclient"
	"go-surplus-storefront/internal/pkg/logger"

	"go.uber.org/zap"
)

//go:generate mockgen -source=cart_api.go -destination=../mock/cart/cart_api_mock.go -package=mock
type API interface {
	Get(ctx context.Context, q Query) (*Cart, error)
	Add(ctx context.Context, req AddItemRequest) error
	Update(ctx context.Context, itemID string, req UpdateQtyRequest) error
	Remove(ctx context.Context, itemID, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
	ApplyCoupon(ctx context.Context, req CouponRequest) error
	RemoveCoupon(ctx context.Context, sessionID string) error
	Merge(ctx context.Context, req MergeRequest) error
}

type api struct {
	client *apiclient.Client
	logger *zap.Logger
}

func NewAPI(client *apiclient.Client, l ...*zap.Logger) API {
	return &api{client: client, logger: logger.Named("cart.api", l...)}
}

// Get returns nil when the backend has no cart for the caller yet.
func (a *api) Get(ctx context.Context, q Query) (*Cart, error) {
	params := url.Values{}
	if q.SessionID != "" {
		params.Set("sessionId", q.SessionID)
	}
	if loc := q.Location; loc != nil {
		if loc.Pincode != "" {
			params.Set("pincode", loc.Pincode)
		}
		if loc.State != "" {
			params.Set("state", loc.State)
		}
		if loc.Country != "" {
			params.Set("country", loc.Country)
		}
	}

	var dto *cartDTO
	if err := a.client.Do(ctx, http.MethodGet, "/cart", params, nil, &dto); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, nil
	}
	if err := a.client.Validate(dto); err != nil {
		return nil, invalid("cart payload: %v", err)
	}

	c, err := dto.toDomain()
	if err != nil {
		return nil, err
	}
	if p := c.Pricing; p != nil && !p.Total.Equal(p.ExpectedTotal()) {
		a.logger.Warn("cart total does not match its breakdown",
			zap.String("cart_id", c.ID),
			zap.String("total", p.Total.String()),
			zap.String("expected", p.ExpectedTotal().String()),
		)
	}
	return c, nil
}

func (a *api) Add(ctx context.Context, req AddItemRequest) error {
	return a.client.Do(ctx, http.MethodPost, "/cart/add", nil, req, nil)
}

func (a *api) Update(ctx context.Context, itemID string, req UpdateQtyRequest) error {
	return a.client.Do(ctx, http.MethodPut, "/cart/update/"+url.PathEscape(itemID), nil, req, nil)
}

func (a *api) Remove(ctx context.Context, itemID, sessionID string) error {
	return a.client.Do(ctx, http.MethodDelete, "/cart/remove/"+url.PathEscape(itemID), sessionQuery(sessionID), nil, nil)
}

func (a *api) Clear(ctx context.Context, sessionID string) error {
	return a.client.Do(ctx, http.MethodDelete, "/cart/clear", sessionQuery(sessionID), nil, nil)
}

func (a *api) ApplyCoupon(ctx context.Context, req CouponRequest) error {
	return a.client.Do(ctx, http.MethodPost, "/cart/apply-coupon", nil, req, nil)
}

func (a *api) RemoveCoupon(ctx context.Context, sessionID string) error {
	return a.client.Do(ctx, http.MethodPost, "/cart/remove-coupon", nil, sessionBody{SessionID: sessionID}, nil)
}

func (a *api) Merge(ctx context.Context, req MergeRequest) error {
	return a.client.Do(ctx, http.MethodPost, "/cart/merge", nil, req, nil)
}

func sessionQuery(sessionID string) url.Values {
	if sessionID == "" {
		return nil
	}
	return url.Values{"sessionId": {sessionID}}
}
