package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"go-surplus-storefront/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var guestIDPattern = regexp.MustCompile(`^guest_\d+_[0-9a-z]{9}$`)

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}
func (failingStorage) Set(context.Context, string, string) error { return errors.New("quota exceeded") }
func (failingStorage) Remove(context.Context, string) error      { return errors.New("storage unavailable") }

func TestResolver_GetOrCreateSessionID(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent_within_storage", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		r := NewResolver(store, "", zap.NewNop())

		first := r.GetOrCreateSessionID(ctx)
		second := r.GetOrCreateSessionID(ctx)

		assert.Regexp(t, guestIDPattern, first)
		assert.Equal(t, first, second)

		persisted, ok, err := store.Get(ctx, "guest_session_id")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, first, persisted)
	})

	t.Run("new_id_after_storage_cleared", func(t *testing.T) {
		store := storage.NewMemoryStorage()
		r := NewResolver(store, "sid", zap.NewNop())

		first := r.GetOrCreateSessionID(ctx)
		store.Clear()
		second := r.GetOrCreateSessionID(ctx)

		assert.NotEqual(t, first, second)
		assert.Regexp(t, guestIDPattern, second)
	})

	t.Run("storage_failure_is_not_an_error", func(t *testing.T) {
		r := NewResolver(failingStorage{}, "sid", zap.NewNop())

		id := r.GetOrCreateSessionID(ctx)
		assert.Regexp(t, guestIDPattern, id)

		_, ok := r.Current(ctx)
		assert.False(t, ok)
		assert.NotPanics(t, func() { r.Discard(ctx) })
	})

	t.Run("concurrent_callers_share_one_id", func(t *testing.T) {
		r := NewResolver(storage.NewMemoryStorage(), "sid", zap.NewNop())

		var wg sync.WaitGroup
		ids := make([]string, 16)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = r.GetOrCreateSessionID(ctx)
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})
}

func TestResolver_CurrentAndDiscard(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(storage.NewMemoryStorage(), "sid", zap.NewNop())

	_, ok := r.Current(ctx)
	assert.False(t, ok)

	id := r.GetOrCreateSessionID(ctx)
	current, ok := r.Current(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, current)

	r.Discard(ctx)
	_, ok = r.Current(ctx)
	assert.False(t, ok)
}
