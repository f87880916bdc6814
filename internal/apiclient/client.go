// Package apiclient is the thin REST client every storefront module uses to
// reach the marketplace backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-surplus-storefront/internal/pkg/apperror"
	"go-surplus-storefront/internal/pkg/logger"
	"go-surplus-storefront/internal/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// TokenSource supplies the bearer token for the current client, or "" for guests.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	validate *validator.Validate
	logger   *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l.Named("apiclient") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
		validate: validator.New(),
		logger:   logger.Named("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokens returns a copy of c that authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Validate runs struct validation on a decoded payload.
func (c *Client) Validate(v any) error {
	return c.validate.Struct(v)
}

// Do sends body as JSON and decodes the envelope's data into out (when
// non-nil). Transport failures map to ErrNetwork, unsuccessful envelopes to
// ErrBackend carrying the backend's message, and undecodable or invalid
// payloads to ErrInvalidResponse.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return apperror.ErrNetwork.Wrap(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return apperror.ErrNetwork.Wrap(err)
	}

	// 204 and other bodiless successes are fine when no data is expected
	if res.StatusCode < http.StatusBadRequest && len(bytes.TrimSpace(raw)) == 0 {
		if out == nil {
			return nil
		}
		return apperror.ErrInvalidResponse.Wrap(errors.New("empty response body"))
	}

	var env response.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return apperror.ErrBackend.WithStatus(statusFor(res.StatusCode)).Wrap(err)
		}
		return apperror.ErrInvalidResponse.Wrap(err)
	}

	if res.StatusCode >= http.StatusBadRequest || !env.Success {
		c.logger.Debug("backend reported failure",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("message", env.ErrorMessage()),
		)
		return apperror.ErrBackend.
			WithMessage(env.ErrorMessage()).
			WithStatus(statusFor(res.StatusCode))
	}

	if out == nil || !env.HasData() {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperror.ErrInvalidResponse.Wrap(err)
	}
	if err := c.validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return apperror.ErrInvalidResponse.Wrap(err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, apperror.ErrInternal.Wrap(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, apperror.ErrInternal.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// statusFor keeps client errors as they are and reports anything else
// from upstream as a bad gateway.
func statusFor(upstream int) int {
	if upstream >= 400 && upstream < 500 {
		return upstream
	}
	return http.StatusBadGateway
}
