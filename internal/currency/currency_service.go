// Package currency converts INR-denominated amounts into display currencies.
// Every monetary amount in the storefront is INR until it is formatted here.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-surplus-storefront/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	Base = "INR"

	DefaultRatesURL = "https://api.exchangerate-api.com/v4/latest/INR"
)

var ErrRatesUnavailable = errors.New("exchange rates unavailable")

// defaultRates are the INR multipliers used until a refresh succeeds.
var defaultRates = map[string]string{
	"INR": "1",
	"USD": "0.012",
	"EUR": "0.011",
	"GBP": "0.0095",
	"AED": "0.044",
	"SGD": "0.016",
	"AUD": "0.018",
	"CAD": "0.016",
	"JPY": "1.8",
	"CNY": "0.087",
}

type ratesPayload struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

type Service struct {
	mu          sync.RWMutex
	rates       map[string]decimal.Decimal
	lastUpdated time.Time

	source  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[map[string]decimal.Decimal]
	group   singleflight.Group
	wg      sync.WaitGroup
	logger  *zap.Logger
}

type Option func(*Service)

func WithSource(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.source = url
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("currency.service") }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		rates:  make(map[string]decimal.Decimal, len(defaultRates)),
		source: DefaultRatesURL,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.Named("currency.service"),
	}
	for code, r := range defaultRates {
		s.rates[code] = decimal.RequireFromString(r)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker[map[string]decimal.Decimal](gobreaker.Settings{
		Name:    "exchange-rates",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info("rates breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// Rate returns the INR multiplier for code; unknown currencies convert 1:1.
func (s *Service) Rate(code string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[normalize(code)]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert turns an INR amount into target currency units.
func (s *Service) Convert(amount decimal.Decimal, target string) decimal.Decimal {
	return amount.Mul(s.Rate(target))
}

// Rates returns a copy of the current table.
func (s *Service) Rates() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}

// LastUpdated is the time of the last successful refresh, zero if none.
func (s *Service) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// FetchExchangeRates refreshes the table from the remote source. Fetched
// rates are merged over the cached ones with INR pinned to 1; on failure the
// cached table is left untouched. Concurrent callers share one request.
func (s *Service) FetchExchangeRates(ctx context.Context) error {
	_, err, _ := s.group.Do("rates", func() (interface{}, error) {
		fetched, err := s.breaker.Execute(func() (map[string]decimal.Decimal, error) {
			return s.fetch(ctx)
		})
		if err != nil {
			return nil, err
		}
		s.merge(fetched)
		return nil, nil
	})
	if err != nil {
		s.logger.Warn("exchange rate refresh failed, keeping cached rates", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
	}
	return nil
}

// RefreshAsync starts a best-effort refresh and returns immediately.
func (s *Service) RefreshAsync(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.FetchExchangeRates(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until refreshes started by RefreshAsync have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run refreshes the rates immediately and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("exchange rate refresher started", zap.Duration("interval", interval))
	_ = s.FetchExchangeRates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.FetchExchangeRates(ctx)
		}
	}
}

func (s *Service) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned status %d", res.StatusCode)
	}

	var payload ratesPayload
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if payload.Base != "" && normalize(payload.Base) != Base {
		return nil, fmt.Errorf("rate source base is %s, want %s", payload.Base, Base)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("rate source returned no rates")
	}
	return payload.Rates, nil
}

func (s *Service) merge(fetched map[string]decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := 0
	for code, r := range fetched {
		if !r.IsPositive() {
			continue
		}
		s.rates[normalize(code)] = r
		merged++
	}
	s.rates[Base] = decimal.NewFromInt(1)
	s.lastUpdated = time.Now()

	s.logger.Debug("exchange rates refreshed", zap.Int("rates", merged))
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
