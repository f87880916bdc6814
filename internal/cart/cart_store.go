package cart

import (
	"context"
	"errors"
	"strings"
	"sync"

	carterrors "go-surplus-storefront/internal/cart/errors"
	"go-surplus-storefront/internal/messaging/kafka/producer"
	"go-surplus-storefront/internal/notify"
	"go-surplus-storefront/internal/pkg/apperror"
	"go-surplus-storefront/internal/pkg/result"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	EventItemAdded     = "CART_ITEM_ADDED"
	EventItemUpdated   = "CART_ITEM_UPDATED"
	EventItemRemoved   = "CART_ITEM_REMOVED"
	EventCleared       = "CART_CLEARED"
	EventCouponApplied = "CART_COUPON_APPLIED"
	EventCouponRemoved = "CART_COUPON_REMOVED"
	EventMerged        = "CART_MERGED"
)

// SessionProvider resolves the guest session a cart belongs to before login.
type SessionProvider interface {
	GetOrCreateSessionID(ctx context.Context) string
	Current(ctx context.Context) (string, bool)
	Discard(ctx context.Context)
}

type AuthChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

type guestOnly struct{}

func (guestOnly) IsAuthenticated(context.Context) bool { return false }

// State is what the UI renders. Cart is the last server snapshot; Items may
// run ahead of it while an optimistic quantity change is in flight.
type State struct {
	Cart      *Cart    `json:"cart"`
	Items     []Item   `json:"items"`
	ItemCount int      `json:"itemCount"`
	Pricing   *Pricing `json:"pricing"`
	Loading   bool     `json:"loading"`
	Error     string   `json:"error,omitempty"`
}

func (st State) clone() State {
	cp := st
	cp.Cart = st.Cart.clone()
	cp.Items = cloneItems(st.Items)
	cp.Pricing = st.Pricing.clone()
	return cp
}

type Deps struct {
	API      API
	Sessions SessionProvider
	Auth     AuthChecker
	Notifier notify.Notifier
	Events   producer.Publisher
	Logger   *zap.Logger
}

// Store is the single source of truth for one shopper's cart. Operations
// never return errors: every failure is reported through the Result and a
// toast, and any optimistic change is rolled back first.
type Store struct {
	api      API
	sessions SessionProvider
	auth     AuthChecker
	notifier notify.Notifier
	events   producer.Publisher
	validate *validator.Validate
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	location   *Location
	issuedSeq  uint64
	appliedSeq uint64
	inflight   int
	subs       map[int]func(State)
	nextSub    int

	wg sync.WaitGroup
}

func NewStore(deps Deps) *Store {
	if deps.API == nil {
		panic("cart api cannot be nil")
	}
	if deps.Sessions == nil {
		panic("session provider cannot be nil")
	}
	if deps.Auth == nil {
		deps.Auth = guestOnly{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Events == nil {
		deps.Events = producer.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.L()
	}

	return &Store{
		api:      deps.API,
		sessions: deps.Sessions,
		auth:     deps.Auth,
		notifier: deps.Notifier,
		events:   deps.Events,
		validate: validator.New(),
		logger:   deps.Logger.Named("cart.store"),
		state:    State{Items: []Item{}},
		subs:     make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe calls fn with a copy of the state after every change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// SetLocation scopes later fetches to a delivery destination.
func (s *Store) SetLocation(loc *Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc == nil {
		s.location = nil
		return
	}
	cp := *loc
	s.location = &cp
}

func (s *Store) IsInCart(productID string) bool {
	_, ok := s.Item(productID)
	return ok
}

// Item returns the line holding productID.
func (s *Store) Item(productID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.state.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Wait blocks until background reconciliations have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// FetchCart replaces cart, items, itemCount and pricing in one step. On
// failure the previous cart is kept and only Error is set. A response for an
// older fetch than the one already applied is discarded.
func (s *Store) FetchCart(ctx context.Context) result.Result[State] {
	var seq uint64
	var loc *Location
	s.commit(func(st *State) {
		s.issuedSeq++
		seq = s.issuedSeq
		s.inflight++
		st.Loading = true
		if s.location != nil {
			cp := *s.location
			loc = &cp
		}
	})

	c, err := s.api.Get(ctx, Query{SessionID: s.guestSessionID(ctx), Location: loc})

	stale := false
	snap := s.commit(func(st *State) {
		s.inflight--
		st.Loading = s.inflight > 0
		if seq <= s.appliedSeq {
			stale = true
			return
		}
		if err != nil {
			st.Error = result.Info(err, "Failed to load cart").Message
			return
		}
		s.appliedSeq = seq
		applyCart(st, c)
		st.Error = ""
	})

	// a newer fetch already settled the state, so this outcome no longer matters
	if stale {
		s.logger.Debug("discarded stale cart response", zap.Uint64("seq", seq), zap.Error(err))
		return result.OK(snap)
	}
	if err != nil {
		s.logger.Warn("fetch cart failed", zap.Error(err))
		return result.FailWith[State](err, "Failed to load cart")
	}
	return result.OK(snap)
}

// AddToCart adds quantity of productID and, unless skipRefresh is set,
// reloads the cart. Callers batching several adds pass skipRefresh on all
// but the last.
func (s *Store) AddToCart(ctx context.Context, productID string, quantity int, skipRefresh bool) result.Result[State] {
	req := AddItemRequest{ProductID: strings.TrimSpace(productID), Quantity: quantity}
	if err := s.validate.Struct(req); err != nil {
		return s.fail("add to cart", carterrors.MapValidationError(err), "Failed to add item to cart")
	}
	req.SessionID = s.guestSessionID(ctx)

	if err := s.api.Add(ctx, req); err != nil {
		return s.fail("add to cart", err, "Failed to add item to cart")
	}

	s.notifier.Success("Added to cart")
	s.emit(ctx, EventItemAdded, req.SessionID, map[string]any{
		"productId": req.ProductID,
		"quantity":  req.Quantity,
	})

	if skipRefresh {
		return result.OK(s.Snapshot())
	}
	return s.refresh(ctx)
}

// UpdateQuantity shows the new quantity immediately, confirms it with the
// backend and reconciles pricing in the background. A rejected change
// restores the previous items exactly.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) result.Result[State] {
	if strings.TrimSpace(itemID) == "" {
		return s.fail("update quantity", carterrors.ErrInvalidItemID, "Failed to update quantity")
	}
	req := UpdateQtyRequest{Quantity: quantity}
	if err := s.validate.Struct(req); err != nil {
		return s.fail("update quantity", carterrors.MapValidationError(err), "Failed to update quantity")
	}

	var previous []Item
	s.commit(func(st *State) {
		previous = cloneItems(st.Items)
		for i := range st.Items {
			if st.Items[i].ID == itemID {
				items := cloneItems(st.Items)
				items[i].Quantity = quantity
				st.Items = items
				break
			}
		}
	})

	req.SessionID = s.guestSessionID(ctx)
	if err := s.api.Update(ctx, itemID, req); err != nil {
		s.commit(func(st *State) {
			st.Items = previous
			st.ItemCount = len(previous)
		})
		return s.fail("update quantity", err, "Failed to update quantity")
	}

	s.emit(ctx, EventItemUpdated, req.SessionID, map[string]any{
		"itemId":   itemID,
		"quantity": quantity,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.FetchCart(context.WithoutCancel(ctx))
	}()

	return result.OK(s.Snapshot())
}

// RemoveItem has no optimistic step; the line disappears once the cart
// has been reloaded.
func (s *Store) RemoveItem(ctx context.Context, itemID string) result.Result[State] {
	if strings.TrimSpace(itemID) == "" {
		return s.fail("remove item", carterrors.ErrInvalidItemID, "Failed to remove item")
	}
	sid := s.guestSessionID(ctx)

	if err := s.api.Remove(ctx, itemID, sid); err != nil {
		return s.fail("remove item", err, "Failed to remove item")
	}

	s.notifier.Success("Item removed from cart")
	s.emit(ctx, EventItemRemoved, sid, map[string]any{"itemId": itemID})
	return s.refresh(ctx)
}

// ClearCart empties the cart; the empty state is known, so nothing is reloaded.
func (s *Store) ClearCart(ctx context.Context) result.Result[State] {
	sid := s.guestSessionID(ctx)

	if err := s.api.Clear(ctx, sid); err != nil {
		return s.fail("clear cart", err, "Failed to clear cart")
	}

	snap := s.commit(s.resetLocked)
	s.notifier.Success("Cart cleared")
	s.emit(ctx, EventCleared, sid, nil)
	return result.OK(snap)
}

// ApplyCoupon rejects blank codes without calling the backend.
func (s *Store) ApplyCoupon(ctx context.Context, code string) result.Result[State] {
	req := CouponRequest{Code: strings.TrimSpace(code)}
	if err := s.validate.Struct(req); err != nil {
		return s.fail("apply coupon", carterrors.MapValidationError(err), "Failed to apply coupon")
	}
	req.SessionID = s.guestSessionID(ctx)

	if err := s.api.ApplyCoupon(ctx, req); err != nil {
		return s.fail("apply coupon", err, "Failed to apply coupon")
	}

	s.notifier.Success("Coupon applied successfully")
	s.emit(ctx, EventCouponApplied, req.SessionID, map[string]any{"code": req.Code})
	return s.refresh(ctx)
}

func (s *Store) RemoveCoupon(ctx context.Context) result.Result[State] {
	sid := s.guestSessionID(ctx)

	if err := s.api.RemoveCoupon(ctx, sid); err != nil {
		return s.fail("remove coupon", err, "Failed to remove coupon")
	}

	s.notifier.Success("Coupon removed")
	s.emit(ctx, EventCouponRemoved, sid, nil)
	return s.refresh(ctx)
}

// MergeGuestCart hands the guest cart over to the logged-in user, forgets
// the guest session and reloads. Without a guest session it only reloads.
// A failed merge keeps the guest session so it can be retried.
func (s *Store) MergeGuestCart(ctx context.Context) result.Result[State] {
	sid, ok := s.sessions.Current(ctx)
	if !ok {
		return s.FetchCart(ctx)
	}

	if err := s.api.Merge(ctx, MergeRequest{SessionID: sid}); err != nil {
		s.logger.Warn("merge guest cart failed", zap.String("session_id", sid), zap.Error(err))
		return result.FailWith[State](err, "Failed to merge cart")
	}

	s.sessions.Discard(ctx)
	s.emit(ctx, EventMerged, sid, map[string]any{"sessionId": sid})
	return s.FetchCart(ctx)
}

// Reset drops local cart state without calling the backend, e.g. on logout.
func (s *Store) Reset() {
	s.commit(s.resetLocked)
}

func (s *Store) resetLocked(st *State) {
	// responses to fetches issued before the reset must not resurrect the cart
	s.appliedSeq = s.issuedSeq
	st.Cart = nil
	st.Items = []Item{}
	st.ItemCount = 0
	st.Pricing = nil
	st.Error = ""
}

// refresh reloads after a confirmed mutation. The mutation stands even if
// the reload fails; that failure shows up in State.Error.
func (s *Store) refresh(ctx context.Context) result.Result[State] {
	s.FetchCart(ctx)
	return result.OK(s.Snapshot())
}

func (s *Store) guestSessionID(ctx context.Context) string {
	if s.auth.IsAuthenticated(ctx) {
		return ""
	}
	return s.sessions.GetOrCreateSessionID(ctx)
}

// commit applies mutate under the lock and notifies subscribers with the
// resulting state.
func (s *Store) commit(mutate func(st *State)) State {
	s.mu.Lock()
	mutate(&s.state)
	snap := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.clone())
	}
	return snap
}

func (s *Store) fail(op string, err error, fallback string) result.Result[State] {
	info := result.Info(err, fallback)
	if errors.Is(err, apperror.ErrBackend) && info.Message == apperror.ErrBackend.Message {
		info.Message = fallback
	}

	s.logger.Warn(op+" failed", zap.String("code", info.Code), zap.Error(err))
	s.notifier.Error(info.Message)
	return result.Fail[State](info)
}

func (s *Store) emit(ctx context.Context, eventType, sessionID string, payload map[string]any) {
	aggregateID := sessionID
	if aggregateID == "" {
		s.mu.Lock()
		if s.state.Cart != nil {
			aggregateID = s.state.Cart.ID
		}
		s.mu.Unlock()
	}
	if aggregateID == "" {
		aggregateID = "user"
	}

	err := s.events.Publish(ctx, producer.Event{
		Type:          eventType,
		AggregateType: "cart",
		AggregateID:   aggregateID,
		Payload:       payload,
	})
	if err != nil {
		s.logger.Warn("cart event not published", zap.String("event_type", eventType), zap.Error(err))
	}
}

func applyCart(st *State, c *Cart) {
	if c == nil {
		st.Cart = nil
		st.Items = []Item{}
		st.ItemCount = 0
		st.Pricing = nil
		return
	}
	st.Cart = c.clone()
	st.Items = cloneItems(c.Items)
	st.ItemCount = len(c.Items)
	st.Pricing = c.Pricing.clone()
}
