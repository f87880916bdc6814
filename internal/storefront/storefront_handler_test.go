package storefront_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-surplus-storefront/internal/apiclient"
	"go-surplus-storefront/internal/cart/carttest"
	"go-surplus-storefront/internal/currency"
	"go-surplus-storefront/internal/middleware"
	"go-surplus-storefront/internal/storage"
	"go-surplus-storefront/internal/storefront"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	router   *gin.Engine
	backend  *carttest.Backend
	registry *storefront.Registry
	storages map[string]*storage.MemoryStorage
}

func mintToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func setupStorefront(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	accessToken := mintToken(t)

	backend := carttest.NewBackend(carttest.Product{ID: "P1", Title: "Pallet of A4 paper", Price: decimal.NewFromInt(500)})
	upstream := gin.New()
	backend.Routes(upstream)
	user := gin.H{"id": "u1", "name": "Asha", "activeRole": "buyer", "roles": []string{"buyer"}}
	upstream.POST("/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"accessToken": accessToken, "refreshToken": "r1", "user": user,
		}})
	})
	upstream.GET("/auth/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
	})
	upstream.POST("/auth/logout", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	f := &fixture{backend: backend, storages: make(map[string]*storage.MemoryStorage)}
	f.registry = storefront.NewRegistry(storefront.Deps{
		API: apiclient.New(srv.URL, apiclient.WithLogger(zap.NewNop())),
		Storage: func(id string) storage.Storage {
			s := storage.NewMemoryStorage()
			f.storages[id] = s
			return s
		},
		Keys:   storage.DefaultKeys(),
		Logger: zap.NewNop(),
	})
	handler := storefront.NewHandler(f.registry, currency.NewService(currency.WithLogger(zap.NewNop())))

	f.router = gin.New()
	f.router.Use(middleware.ClientMiddleware(false))
	storefront.RegisterRoutes(f.router.Group("/api/v1"), handler, zap.NewNop())
	return f
}

type browser struct {
	t      *testing.T
	f      *fixture
	cookie *http.Cookie
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type cartData struct {
	Cart struct {
		Items []struct {
			ID        string `json:"id"`
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		ItemCount int `json:"itemCount"`
		Pricing   *struct {
			Subtotal       decimal.Decimal `json:"subtotal"`
			CouponDiscount decimal.Decimal `json:"couponDiscount"`
			Total          decimal.Decimal `json:"total"`
		} `json:"pricing"`
	} `json:"cart"`
	Toasts []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"toasts"`
}

func (b *browser) do(method, path string, body any) (int, envelope) {
	b.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.f.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.ClientCookie {
			b.cookie = c
		}
	}

	var env envelope
	require.NoError(b.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (b *browser) cart(method, path string, body any) (int, envelope, cartData) {
	b.t.Helper()
	code, env := b.do(method, path, body)
	var data cartData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(b.t, json.Unmarshal(env.Data, &data))
	}
	return code, env, data
}

func TestStorefront_GuestToBuyer(t *testing.T) {
	f := setupStorefront(t)
	b := &browser{t: t, f: f}

	code, env := b.do(http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, code)
	var sess storefront.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Contains(t, sess.SessionID, "guest_")
	require.NotNil(t, b.cookie)

	code, _, data := b.cart(http.MethodPost, "/cart/items", gin.H{"productId": "P1", "quantity": 2})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, data.Cart.ItemCount)
	require.NotNil(t, data.Cart.Pricing)
	assert.True(t, data.Cart.Pricing.Subtotal.Equal(decimal.NewFromInt(1000)))
	require.Len(t, data.Toasts, 1)
	assert.Equal(t, "Added to cart", data.Toasts[0].Message)
	itemID := data.Cart.Items[0].ID

	code, env, data = b.cart(http.MethodPost, "/cart/coupon", gin.H{"code": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Please enter a coupon code", env.Message)
	assert.Equal(t, 1, data.Cart.ItemCount, "failed calls still return the cart")

	code, env, _ = b.cart(http.MethodPatch, "/cart/items/"+itemID, gin.H{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Quantity must be at least 1", env.Message)

	code, _, data = b.cart(http.MethodPost, "/cart/coupon", gin.H{"code": "SAVE10"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, data.Cart.Pricing.CouponDiscount.IsPositive())

	code, _ = b.do(http.MethodPost, "/auth/login", gin.H{"email": "asha@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{sess.SessionID}, f.backend.MergedSessions())

	clientStore := f.storages[b.cookie.Value]
	require.NotNil(t, clientStore)
	_, ok, _ := clientStore.Get(context.Background(), storage.DefaultKeys().GuestSession)
	assert.False(t, ok)

	code, _, data = b.cart(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, data.Cart.Items[0].Quantity)

	code, _ = b.do(http.MethodGet, "/buyer/dashboard", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = b.do(http.MethodGet, "/supplier/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, env.Message, "Access denied")

	code, _ = b.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = b.do(http.MethodGet, "/buyer/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStorefront_ClientsAreIsolated(t *testing.T) {
	f := setupStorefront(t)
	alice := &browser{t: t, f: f}
	bob := &browser{t: t, f: f}

	code, _, _ := alice.cart(http.MethodPost, "/cart/items", gin.H{"productId": "P1", "quantity": 1})
	require.Equal(t, http.StatusOK, code)

	code, _, data := bob.cart(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, data.Cart.ItemCount)
	assert.Equal(t, 2, f.registry.Len())
}

func TestStorefront_ClearCart(t *testing.T) {
	f := setupStorefront(t)
	b := &browser{t: t, f: f}

	b.cart(http.MethodPost, "/cart/items", gin.H{"productId": "P1", "quantity": 3})
	code, _, data := b.cart(http.MethodDelete, "/cart", nil)

	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, data.Cart.ItemCount)
	assert.Empty(t, data.Cart.Items)
	assert.Nil(t, data.Cart.Pricing)
}

func TestStorefront_BackendFailure(t *testing.T) {
	f := setupStorefront(t)
	b := &browser{t: t, f: f}
	f.backend.FailNext("POST /cart/add", http.StatusConflict, "Only 1 unit left")

	code, env, data := b.cart(http.MethodPost, "/cart/items", gin.H{"productId": "P1", "quantity": 5})

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Only 1 unit left", env.Message)
	require.Len(t, data.Toasts, 1)
	assert.Equal(t, "error", data.Toasts[0].Level)
}

func TestStorefront_Currency(t *testing.T) {
	f := setupStorefront(t)
	b := &browser{t: t, f: f}

	code, env := b.do(http.MethodPost, "/currency/format", gin.H{
		"amounts":  []any{"1234567", nil},
		"currency": "INR",
	})
	require.Equal(t, http.StatusOK, code)
	var formatted storefront.FormatResponse
	require.NoError(t, json.Unmarshal(env.Data, &formatted))
	assert.Equal(t, []string{"₹12,34,567", ""}, formatted.Formatted)

	code, env = b.do(http.MethodGet, "/currency/rates", nil)
	require.Equal(t, http.StatusOK, code)
	var rates storefront.RatesResponse
	require.NoError(t, json.Unmarshal(env.Data, &rates))
	assert.Equal(t, "INR", rates.Base)
	assert.True(t, rates.Rates["INR"].Equal(decimal.NewFromInt(1)))
	assert.Contains(t, rates.Supported, "USD")
	assert.Equal(t, "$", rates.Symbols["USD"])
	assert.Equal(t, "₹", rates.Symbols["INR"])
}

func TestStorefront_FormatFractionDigits(t *testing.T) {
	f := setupStorefront(t)
	b := &browser{t: t, f: f}

	tests := []struct {
		name     string
		body     gin.H
		wantCode int
		want     string
	}{
		{name: "upper_limit", body: gin.H{"minFractionDigits": 0, "maxFractionDigits": 20}, wantCode: http.StatusOK, want: "$14.8148136"},
		{name: "lower_limit", body: gin.H{"minFractionDigits": 0, "maxFractionDigits": 0}, wantCode: http.StatusOK, want: "$15"},
		{name: "max_above_limit", body: gin.H{"maxFractionDigits": 21}, wantCode: http.StatusBadRequest},
		{name: "max_int32_overflow", body: gin.H{"maxFractionDigits": 1 << 31}, wantCode: http.StatusBadRequest},
		{name: "min_huge", body: gin.H{"minFractionDigits": 1_000_000, "maxFractionDigits": 1_000_000}, wantCode: http.StatusBadRequest},
		{name: "min_negative", body: gin.H{"minFractionDigits": -1}, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := gin.H{"amounts": []string{"1234.5678"}, "currency": "USD"}
			for k, v := range tt.body {
				body[k] = v
			}

			code, env := b.do(http.MethodPost, "/currency/format", body)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != http.StatusOK {
				assert.False(t, env.Success)
				assert.Equal(t, "Invalid request body", env.Message)
				return
			}
			var formatted storefront.FormatResponse
			require.NoError(t, json.Unmarshal(env.Data, &formatted))
			assert.Equal(t, []string{tt.want}, formatted.Formatted)
		})
	}
}

func TestStorefront_BadBody(t *testing.T) {
	f := setupStorefront(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
