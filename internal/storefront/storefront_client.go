package storefront

import (
	"context"
	"sync"
	"time"

	"go-surplus-storefront/internal/apiclient"
	"go-surplus-storefront/internal/auth"
	"go-surplus-storefront/internal/cart"
	"go-surplus-storefront/internal/messaging/kafka/producer"
	"go-surplus-storefront/internal/notify"
	"go-surplus-storefront/internal/pkg/logger"
	"go-surplus-storefront/internal/session"
	"go-surplus-storefront/internal/storage"

	"go.uber.org/zap"
)

const (
	toastLimit = 20

	DefaultIdleTTL = 30 * time.Minute
)

// Client is everything the storefront keeps for one browser.
type Client struct {
	ID       string
	Auth     *auth.Client
	Sessions *session.Resolver
	Cart     *cart.Store
	Toasts   *notify.Queue
}

type Deps struct {
	API *apiclient.Client
	// Storage returns the durable store for a client id.
	Storage func(clientID string) storage.Storage
	Keys    storage.Keys
	Events  producer.Publisher
	Logger  *zap.Logger
	// IdleTTL is how long an unused client is kept in memory. Durable state
	// survives eviction only when Storage is durable.
	IdleTTL time.Duration
}

type entry struct {
	client   *Client
	lastSeen time.Time
}

// Registry lazily builds one Client per client id and evicts clients that
// have been idle for longer than IdleTTL.
type Registry struct {
	deps   Deps
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*entry
}

func NewRegistry(deps Deps) *Registry {
	if deps.Storage == nil {
		deps.Storage = func(string) storage.Storage { return storage.NewMemoryStorage() }
	}
	if deps.Events == nil {
		deps.Events = producer.NopPublisher{}
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		deps:    deps,
		logger:  logger.Named("storefront.registry", deps.Logger),
		clients: make(map[string]*entry),
	}
}

func (r *Registry) Get(id string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e, ok := r.clients[id]; ok {
		e.lastSeen = now
		return e.client
	}
	c := r.build(id)
	r.clients[id] = &entry{client: c, lastSeen: now}
	r.logger.Debug("client registered", zap.String("client_id", id))
	return c
}

// Sweep evicts clients last seen more than IdleTTL before now and waits for
// their background cart work. It returns how many were evicted.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.deps.IdleTTL)

	r.mu.Lock()
	var evicted []*Client
	for id, e := range r.clients {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.client)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range evicted {
		c.Cart.Wait()
	}
	if len(evicted) > 0 {
		r.logger.Debug("idle clients evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run sweeps idle clients every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Wait blocks until every client's background cart work has settled.
func (r *Registry) Wait() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, e := range r.clients {
		clients = append(clients, e.client)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Cart.Wait()
	}
}

func (r *Registry) build(id string) *Client {
	l := r.logger.With(zap.String("client_id", id))
	store := r.deps.Storage(id)

	tokens := auth.NewTokenStore(store, r.deps.Keys)
	api := r.deps.API.WithTokens(tokens)
	authClient := auth.NewClient(api, tokens, l)
	sessions := session.NewResolver(store, r.deps.Keys.GuestSession, l)
	toasts := notify.NewQueue(toastLimit)

	carts := cart.NewStore(cart.Deps{
		API:      cart.NewAPI(api, l),
		Sessions: sessions,
		Auth:     authClient,
		Notifier: toasts,
		Events:   r.deps.Events,
		Logger:   l,
	})

	authClient.OnLogin(func(ctx context.Context, _ *auth.User) {
		if res := carts.MergeGuestCart(ctx); !res.Success() {
			toasts.Error(res.Message())
		}
	})
	authClient.OnLogout(func(context.Context, *auth.User) {
		carts.Reset()
	})

	return &Client{ID: id, Auth: authClient, Sessions: sessions, Cart: carts, Toasts: toasts}
}
