// Package session resolves the guest session id that ties an anonymous
// cart to server-side state before the shopper logs in.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go-surplus-storefront/internal/pkg/logger"
	"go-surplus-storefront/internal/storage"

	"go.uber.org/zap"
)

const (
	guestPrefix  = "guest_"
	suffixLength = 9
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type Resolver struct {
	mu     sync.Mutex
	store  storage.Storage
	key    string
	now    func() time.Time
	logger *zap.Logger
}

func NewResolver(store storage.Storage, key string, l ...*zap.Logger) *Resolver {
	if key == "" {
		key = storage.DefaultKeys().GuestSession
	}
	return &Resolver{
		store:  store,
		key:    key,
		now:    time.Now,
		logger: logger.Named("session.resolver", l...),
	}
}

// GetOrCreateSessionID returns the persisted guest id, creating and storing
// one on first use. Storage failures degrade to "no session" and are logged.
func (r *Resolver) GetOrCreateSessionID(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.lookup(ctx); ok {
		return id
	}

	id := newGuestID(r.now())
	if err := r.store.Set(ctx, r.key, id); err != nil {
		r.logger.Warn("persist guest session failed", zap.Error(err))
	}
	r.logger.Debug("guest session created", zap.String("session_id", id))
	return id
}

// Current returns the persisted guest id without creating one.
func (r *Resolver) Current(ctx context.Context) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(ctx)
}

// Discard forgets the guest id, once its cart belongs to a user.
func (r *Resolver) Discard(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Remove(ctx, r.key); err != nil {
		r.logger.Warn("discard guest session failed", zap.Error(err))
	}
}

func (r *Resolver) lookup(ctx context.Context) (string, bool) {
	id, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		r.logger.Warn("read guest session failed", zap.Error(err))
		return "", false
	}
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

func newGuestID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", guestPrefix, now.UnixMilli(), randomSuffix(suffixLength))
}

func randomSuffix(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		sb.WriteByte(base36[idx.Int64()])
	}
	return sb.String()
}
