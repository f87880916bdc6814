// Package roleguard decides whether a page gated on a role may render for
// the current user, re-checking a stale cached role against the backend
// before turning the user away.
package roleguard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go-surplus-storefront/internal/auth"
	autherrors "go-surplus-storefront/internal/auth/errors"
	"go-surplus-storefront/internal/notify"
	"go-surplus-storefront/internal/pkg/logger"

	"go.uber.org/zap"
)

type State int

const (
	Loading State = iota
	Unauthenticated
	RoleMismatchPendingVerification
	RoleMismatchConfirmed
	Authorized
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case RoleMismatchPendingVerification:
		return "role_mismatch_pending_verification"
	case RoleMismatchConfirmed:
		return "role_mismatch_confirmed"
	case Authorized:
		return "authorized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the page view is settled.
func (s State) Terminal() bool {
	return s == Authorized || s == RoleMismatchConfirmed
}

const LoginPath = "/login"

var landingPages = map[auth.Role]string{
	auth.RoleBuyer:    "/",
	auth.RoleSupplier: "/supplier/dashboard",
	auth.RoleAgent:    "/agent/dashboard",
	auth.RoleAdmin:    "/admin/dashboard",
}

// LandingPage is where a user acting as role is sent when turned away.
func LandingPage(role auth.Role) string {
	if p, ok := landingPages[role]; ok {
		return p
	}
	return "/"
}

// Identity is the auth context the guard reads. Me asks the backend for
// the current identity, bypassing the cache.
type Identity interface {
	IsAuthenticated(ctx context.Context) bool
	CachedUser(ctx context.Context) (*auth.User, bool)
	Me(ctx context.Context) (*auth.User, error)
}

type Decision struct {
	State    State      `json:"state"`
	User     *auth.User `json:"user,omitempty"`
	Redirect string     `json:"redirect,omitempty"`
	Notice   string     `json:"notice,omitempty"`
}

// Guard gates one page view on a single required role.
type Guard struct {
	required auth.Role
	identity Identity
	notifier notify.Notifier
	logger   *zap.Logger

	verifying atomic.Bool

	mu       sync.Mutex
	decision Decision
}

type Option func(*Guard)

func WithNotifier(n notify.Notifier) Option {
	return func(g *Guard) {
		if n != nil {
			g.notifier = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) { g.logger = logger.Named("roleguard", l) }
}

func New(required auth.Role, identity Identity, opts ...Option) *Guard {
	g := &Guard{
		required: required,
		identity: identity,
		notifier: notify.Nop{},
		logger:   logger.Named("roleguard"),
		decision: Decision{State: Loading},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) Required() auth.Role {
	return g.required
}

// Decision returns the latest decision without evaluating.
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Evaluate advances the guard from the current auth context. A matching
// cached role authorizes without touching the backend. A mismatch triggers
// one identity refresh; callers arriving while it runs get the pending
// decision instead of starting another. Settled decisions are returned as is.
func (g *Guard) Evaluate(ctx context.Context) Decision {
	if d := g.Decision(); d.State.Terminal() {
		return d
	}

	user, ok := g.currentUser(ctx)
	if !ok {
		return g.unauthenticated()
	}
	if user.ActiveRole == g.required {
		d, _ := g.settle(Decision{State: Authorized, User: user})
		return d
	}

	if !g.verifying.CompareAndSwap(false, true) {
		return g.Decision()
	}
	defer g.verifying.Store(false)

	// a concurrent verification may have settled while we raced for the flag
	if d := g.Decision(); d.State.Terminal() {
		return d
	}
	g.set(Decision{State: RoleMismatchPendingVerification, User: user})

	g.logger.Debug("role mismatch, verifying with backend",
		zap.String("required", string(g.required)),
		zap.String("cached_role", string(user.ActiveRole)),
	)

	fresh, err := g.identity.Me(ctx)
	if err != nil {
		g.logger.Warn("role verification failed", zap.Error(err))
		return g.confirmMismatch(user)
	}
	if fresh.ActiveRole == g.required {
		d, _ := g.settle(Decision{State: Authorized, User: fresh})
		return d
	}
	return g.confirmMismatch(fresh)
}

func (g *Guard) currentUser(ctx context.Context) (*auth.User, bool) {
	if !g.identity.IsAuthenticated(ctx) {
		return nil, false
	}
	return g.identity.CachedUser(ctx)
}

func (g *Guard) unauthenticated() Decision {
	d := Decision{
		State:    Unauthenticated,
		Redirect: LoginPath,
		Notice:   autherrors.ErrUnauthorized.Message,
	}
	if g.Decision().State != Unauthenticated {
		g.notifier.Info(d.Notice)
	}
	g.set(d)
	return d
}

func (g *Guard) confirmMismatch(u *auth.User) Decision {
	notice := fmt.Sprintf("Access denied. This page is only available to %s accounts", g.required)
	if u.HasRole(g.required) {
		notice = fmt.Sprintf("Please switch to %s role from settings to access this page", g.required)
	}

	d, won := g.settle(Decision{
		State:    RoleMismatchConfirmed,
		User:     u,
		Redirect: LandingPage(u.ActiveRole),
		Notice:   notice,
	})
	if won {
		g.notifier.Error(d.Notice)
	}
	return d
}

// settle records a terminal decision unless another caller got there first.
func (g *Guard) settle(d Decision) (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decision.State.Terminal() {
		return g.decision, false
	}
	g.decision = d
	return d, true
}

func (g *Guard) set(d Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.decision.State.Terminal() {
		g.decision = d
	}
}
