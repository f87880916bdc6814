package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRateSource(t *testing.T, handler gin.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	gin.SetMode(gin.TestMode)
	var calls atomic.Int32
	r := gin.New()
	r.GET("/latest/INR", func(c *gin.Context) {
		calls.Add(1)
		handler(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestService_DefaultRates(t *testing.T) {
	svc := NewService(WithLogger(zap.NewNop()))

	assert.True(t, svc.Rate("INR").Equal(decimal.NewFromInt(1)))
	assert.True(t, svc.Rate("usd").Equal(decimal.RequireFromString("0.012")))
	assert.True(t, svc.Rate("XYZ").Equal(decimal.NewFromInt(1)), "unknown currencies are not converted")
	assert.True(t, svc.LastUpdated().IsZero())
	assert.Contains(t, svc.SupportedCurrencies(), "INR")
}

func TestService_FetchExchangeRates(t *testing.T) {
	ctx := context.Background()

	t.Run("merges_and_pins_inr", func(t *testing.T) {
		srv, _ := setupRateSource(t, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"base":  "INR",
				"rates": gin.H{"INR": 2, "USD": 0.0125, "THB": 0.41, "BAD": 0},
			})
		})
		svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))

		require.NoError(t, svc.FetchExchangeRates(ctx))

		assert.True(t, svc.Rate("INR").Equal(decimal.NewFromInt(1)))
		assert.True(t, svc.Rate("USD").Equal(decimal.RequireFromString("0.0125")))
		assert.True(t, svc.Rate("THB").Equal(decimal.RequireFromString("0.41")))
		assert.True(t, svc.Rate("EUR").Equal(decimal.RequireFromString("0.011")), "rates missing from the response stay cached")
		assert.NotContains(t, svc.Rates(), "BAD")
		assert.False(t, svc.LastUpdated().IsZero())
	})

	t.Run("failure_keeps_cached_rates", func(t *testing.T) {
		srv, _ := setupRateSource(t, func(c *gin.Context) {
			c.Status(http.StatusServiceUnavailable)
		})
		svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))
		before := svc.Rates()

		err := svc.FetchExchangeRates(ctx)

		require.ErrorIs(t, err, ErrRatesUnavailable)
		assert.Equal(t, before, svc.Rates())
	})

	t.Run("wrong_base_is_rejected", func(t *testing.T) {
		srv, _ := setupRateSource(t, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"base": "USD", "rates": gin.H{"INR": 83}})
		})
		svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))

		assert.ErrorIs(t, svc.FetchExchangeRates(ctx), ErrRatesUnavailable)
		assert.True(t, svc.Rate("INR").Equal(decimal.NewFromInt(1)))
	})

	t.Run("breaker_opens_after_consecutive_failures", func(t *testing.T) {
		srv, calls := setupRateSource(t, func(c *gin.Context) {
			c.Status(http.StatusInternalServerError)
		})
		svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))

		for i := 0; i < 5; i++ {
			_ = svc.FetchExchangeRates(ctx)
		}

		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("concurrent_refreshes_share_one_request", func(t *testing.T) {
		release := make(chan struct{})
		srv, calls := setupRateSource(t, func(c *gin.Context) {
			<-release
			c.JSON(http.StatusOK, gin.H{"base": "INR", "rates": gin.H{"USD": 0.013}})
		})
		svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))

		var wg sync.WaitGroup
		var started sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			started.Add(1)
			go func() {
				defer wg.Done()
				started.Done()
				_ = svc.FetchExchangeRates(ctx)
			}()
		}
		started.Wait()
		assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		close(release)
		wg.Wait()

		assert.Less(t, calls.Load(), int32(5))
		assert.True(t, svc.Rate("USD").Equal(decimal.RequireFromString("0.013")))
	})
}

func TestService_RefreshAsync(t *testing.T) {
	srv, _ := setupRateSource(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"base": "INR", "rates": gin.H{"USD": 0.02}})
	})
	svc := NewService(WithSource(srv.URL+"/latest/INR"), WithLogger(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	svc.RefreshAsync(ctx)
	cancel()
	svc.Wait()

	assert.Equal(t, "$20.00", svc.FormatPrice(amount("1000"), "USD"))
}
