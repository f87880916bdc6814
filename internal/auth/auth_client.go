package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"

	autherrors "go-surplus-storefront/internal/auth/errors"
	"go-surplus-storefront/internal/apiclient"
	"go-surplus-storefront/internal/pkg/logger"

	"go.uber.org/zap"
)

// Hook runs after a login or logout has settled. Hooks must not block for long;
// they run on the caller's goroutine.
type Hook func(ctx context.Context, u *User)

type Client struct {
	*TokenStore

	api    *apiclient.Client
	logger *zap.Logger

	mu          sync.RWMutex
	loginHooks  []Hook
	logoutHooks []Hook
}

func NewClient(api *apiclient.Client, tokens *TokenStore, l ...*zap.Logger) *Client {
	return &Client{
		TokenStore: tokens,
		api:        api.WithTokens(tokens),
		logger:     logger.Named("auth.client", l...),
	}
}

// OnLogin registers h to run after every successful login (the guest cart
// merge hangs off this).
func (c *Client) OnLogin(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginHooks = append(c.loginHooks, h)
}

func (c *Client) OnLogout(h Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutHooks = append(c.logoutHooks, h)
}

// IsAuthenticated reports whether a usable access token is stored.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.AccessToken(ctx) != ""
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	req := LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.api.Validate(req); err != nil {
		return nil, autherrors.ErrInvalidCredentials
	}

	var res LoginResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth/login", nil, req, &res); err != nil {
		c.logger.Warn("login failed", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	if err := c.saveTokens(ctx, res.AccessToken, res.RefreshToken); err != nil {
		c.logger.Error("persist tokens failed", zap.Error(err))
		return nil, autherrors.ErrLoginFailed.Wrap(err)
	}
	if err := c.saveUser(ctx, &res.User); err != nil {
		c.logger.Warn("persist user failed", zap.Error(err))
	}

	c.logger.Info("user logged in",
		zap.String("user_id", res.User.ID),
		zap.String("active_role", string(res.User.ActiveRole)),
	)
	c.run(ctx, c.hooks(true), &res.User)
	return &res.User, nil
}

// Me fetches the current identity from the backend and refreshes the cache.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if !c.IsAuthenticated(ctx) {
		return nil, autherrors.ErrUnauthorized
	}

	var u User
	if err := c.api.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, autherrors.ErrUnauthorized
	}
	if err := c.saveUser(ctx, &u); err != nil {
		c.logger.Warn("persist user failed", zap.Error(err))
	}
	return &u, nil
}

// Logout tells the backend best-effort, then always forgets local credentials.
func (c *Client) Logout(ctx context.Context) error {
	u, _ := c.CachedUser(ctx)

	if c.IsAuthenticated(ctx) {
		if err := c.api.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
			c.logger.Warn("backend logout failed", zap.Error(err))
		}
	}
	err := c.clear(ctx)
	if err != nil {
		c.logger.Warn("clear credentials failed", zap.Error(err))
	}
	c.run(ctx, c.hooks(false), u)
	return err
}

func (c *Client) hooks(login bool) []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if login {
		return append([]Hook(nil), c.loginHooks...)
	}
	return append([]Hook(nil), c.logoutHooks...)
}

func (c *Client) run(ctx context.Context, hooks []Hook, u *User) {
	for _, h := range hooks {
		h(ctx, u)
	}
}
