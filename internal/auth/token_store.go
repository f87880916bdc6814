package auth

import (
	"context"
	"encoding/json"
	"time"

	"go-surplus-storefront/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore keeps tokens and the cached user in durable client storage.
type TokenStore struct {
	store storage.Storage
	keys  storage.Keys
	now   func() time.Time
}

func NewTokenStore(store storage.Storage, keys storage.Keys) *TokenStore {
	return &TokenStore{store: store, keys: keys, now: time.Now}
}

// AccessToken returns the stored token unless it is known to be expired.
func (t *TokenStore) AccessToken(ctx context.Context) string {
	token, ok, err := t.store.Get(ctx, t.keys.AccessToken)
	if err != nil || !ok || token == "" {
		return ""
	}
	if tokenExpired(token, t.now()) {
		return ""
	}
	return token
}

func (t *TokenStore) CachedUser(ctx context.Context) (*User, bool) {
	raw, ok, err := t.store.Get(ctx, t.keys.User)
	if err != nil || !ok || raw == "" {
		return nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return nil, false
	}
	return &u, true
}

func (t *TokenStore) saveTokens(ctx context.Context, access, refresh string) error {
	if err := t.store.Set(ctx, t.keys.AccessToken, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return t.store.Set(ctx, t.keys.RefreshToken, refresh)
}

func (t *TokenStore) saveUser(ctx context.Context, u *User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, t.keys.User, string(raw))
}

func (t *TokenStore) clear(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{t.keys.AccessToken, t.keys.RefreshToken, t.keys.User} {
		if err := t.store.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// tokenExpired reads the exp claim without verifying the signature; the
// backend verifies. Opaque tokens are never considered expired.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
