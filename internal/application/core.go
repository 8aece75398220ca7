package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

type CoreOptions struct {
	Cache     cache.Options
	Staleness Staleness
	Identity  IdentityOptions
	// GCInterval is how often Run sweeps the cache.
	GCInterval time.Duration
}

// Core wires the session manager, the cache and the domain services
// together and is what callers hold on to.
type Core struct {
	Identity    *IdentityService
	Store       *cache.Store
	Bus         *cache.Bus
	Coordinator *cache.Coordinator
	Content     *ContentService
	Stories     *StoryService
	Tasks       *TaskService
	Profiles    *ProfileService

	logger     *slog.Logger
	gcInterval time.Duration

	mu       sync.Mutex
	lastUser domain.UserID
}

func NewCore(auth ports.AuthProvider, data ports.DataService, slots ports.SlotStore, clock ports.Clock, logger *slog.Logger, opts CoreOptions) *Core {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := cache.NewStore(opts.Cache, clock, logger.With("component", "cache"))
	bus := cache.NewBus(store, logger.With("component", "bus"), InvalidationRules()...)
	coord := cache.NewCoordinator(store, bus, logger.With("component", "mutations"))
	identity := NewIdentityService(auth, data, slots, clock, logger.With("component", "identity"), opts.Identity)

	base := entityService{
		data:      data,
		store:     store,
		coord:     coord,
		session:   identity,
		clock:     clock,
		logger:    logger,
		staleness: opts.Staleness.withDefaults(),
	}

	c := &Core{
		Identity:    identity,
		Store:       store,
		Bus:         bus,
		Coordinator: coord,
		Content:     &ContentService{entityService: base},
		Stories:     &StoryService{entityService: base},
		Tasks:       &TaskService{entityService: base},
		Profiles:    &ProfileService{entityService: base, identity: identity},
		logger:      logger,
		gcInterval:  opts.GCInterval,
	}
	identity.OnChange(c.onSessionChange)
	return c
}

// Start resolves the initial session.
func (c *Core) Start(ctx context.Context) domain.Session {
	return c.Identity.Resolve(ctx)
}

// Run keeps the session in sync with auth events and sweeps the cache until
// ctx is done.
func (c *Core) Run(ctx context.Context) error {
	go c.Store.Run(ctx, c.gcInterval)
	return c.Identity.Watch(ctx)
}

func (c *Core) Close() {
	c.Store.Close()
}

func (c *Core) Session() domain.Session {
	return c.Identity.Session()
}

// UseEntity subscribes to q. Close the subscription when done with it.
func (c *Core) UseEntity(ctx context.Context, q cache.Query, opts cache.SubscribeOptions) *cache.Subscription {
	return c.Store.Subscribe(ctx, q, opts)
}

func (c *Core) Mutate(ctx context.Context, target domain.CacheKey, optimisticValue any, remote func(ctx context.Context) (any, error)) (cache.MutationResult, error) {
	return c.Coordinator.Mutate(ctx, target, optimisticValue, remote)
}

func (c *Core) ConvertGuestToUser(ctx context.Context, credentials domain.Credentials, data domain.ProfileData) (ConversionResult, error) {
	return c.Identity.ConvertGuestToUser(ctx, credentials, data)
}

func (c *Core) SignOut(ctx context.Context) domain.Session {
	return c.Identity.SignOut(ctx)
}

// onSessionChange drops the cached keys that belonged to the previous
// identity.
func (c *Core) onSessionChange(session domain.Session) {
	c.mu.Lock()
	previous := c.lastUser
	c.lastUser = session.UserID()
	c.mu.Unlock()

	if previous == "" || previous == session.UserID() {
		return
	}
	removed := c.Store.Remove(domain.UserScoped(previous)...)
	c.logger.Debug("previous identity keys dropped", "user_id", previous, "removed", removed)
}
