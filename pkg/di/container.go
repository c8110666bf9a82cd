package di

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/config"
	"github.com/goliatone/go-fitsync/invalidation"
	"github.com/goliatone/go-fitsync/logging"
	"github.com/goliatone/go-fitsync/metrics"
	"github.com/goliatone/go-fitsync/mutation"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncclient"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Container wires one sync session: the query cache, the invalidation
// router, the mutation coordinator and the typed client, all sharing a
// clock, logger and metrics collector. Background work (the overdue
// poller) only runs between Start and Close.
type Container struct {
	config      *config.Config
	cache       *cache.QueryCache
	router      *invalidation.Router
	coordinator *mutation.Coordinator
	client      *syncclient.Client
	metrics     *metrics.Collector
	poller      *cache.Poller
	logger      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

type Option func(*settings)

type settings struct {
	clock      clockwork.Clock
	logger     *zerolog.Logger
	registerer prometheus.Registerer
	entries    cache.EntryStore
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

// WithLogger overrides the logger built from the logging configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = &logger }
}

// WithRegisterer registers the session metrics with reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = reg }
}

// WithEntryStore replaces the sturdyc entry store built from the cache
// configuration.
func WithEntryStore(entries cache.EntryStore) Option {
	return func(s *settings) { s.entries = entries }
}

// NewContainer builds a session over registry.
func NewContainer(cfg *config.Config, registry *store.Registry, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("di: config is required")
	}
	if registry == nil {
		return nil, errors.New("di: store registry is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}

	s := settings{
		clock:      clockwork.NewRealClock(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&s)
	}

	logger, err := resolveLogger(cfg, s.logger)
	if err != nil {
		return nil, err
	}

	staleness, err := cfg.StalenessTable()
	if err != nil {
		return nil, err
	}

	entries := s.entries
	if entries == nil {
		if entries, err = cache.NewEntryStore(cfg.Cache.ToCache()); err != nil {
			return nil, fmt.Errorf("di: entry store: %w", err)
		}
	}

	collector := metrics.New(s.registerer)

	qc, err := cache.New(entries, syncclient.NewLoader(registry, s.clock),
		cache.WithClock(s.clock),
		cache.WithLogger(logger),
		cache.WithObserver(collector),
		cache.WithStaleness(staleness),
	)
	if err != nil {
		return nil, fmt.Errorf("di: query cache: %w", err)
	}

	router, err := invalidation.NewRouter(invalidation.DefaultTable(), invalidation.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("di: router: %w", err)
	}

	coord, err := mutation.New(qc, router, registry,
		mutation.WithOptions(cfg.Mutations.ToOptions()),
		mutation.WithClock(s.clock),
		mutation.WithLogger(logger),
		mutation.WithObserver(collector),
	)
	if err != nil {
		return nil, fmt.Errorf("di: coordinator: %w", err)
	}

	c := &Container{
		config:      cfg,
		cache:       qc,
		router:      router,
		coordinator: coord,
		client:      syncclient.New(qc, coord),
		metrics:     collector,
		logger:      logger,
	}

	if cfg.Polling.Enabled {
		if c.poller, err = cache.NewPoller(qc, cfg.Polling.ToPolicy()); err != nil {
			return nil, fmt.Errorf("di: poller: %w", err)
		}
	}
	return c, nil
}

// NewContainerWithDefaults builds a session from config.Default.
func NewContainerWithDefaults(registry *store.Registry, opts ...Option) (*Container, error) {
	return NewContainer(config.Default(), registry, opts...)
}

func resolveLogger(cfg *config.Config, override *zerolog.Logger) (zerolog.Logger, error) {
	if override != nil {
		return *override, nil
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("di: %w", err)
	}
	return logger, nil
}

// Start launches background workers. They stop when ctx is cancelled or
// Close is called.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.group != nil {
		return errors.New("di: session already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	if c.poller != nil {
		group.Go(func() error {
			return c.poller.Run(gctx)
		})
	}

	c.cancel = cancel
	c.group = group
	c.logger.Info().Bool("polling", c.poller != nil).Msg("session started")
	return nil
}

// Close stops background workers, waits for them and drops every cached
// entry. It is safe to call without Start.
func (c *Container) Close() error {
	c.mu.Lock()
	cancel, group := c.cancel, c.group
	c.cancel, c.group = nil, nil
	c.mu.Unlock()

	var err error
	if group != nil {
		cancel()
		err = group.Wait()
	}
	c.cache.Purge()
	c.logger.Info().Msg("session closed")
	return err
}

func (c *Container) Config() *config.Config { return c.config }

func (c *Container) Cache() *cache.QueryCache { return c.cache }

func (c *Container) Router() *invalidation.Router { return c.router }

func (c *Container) Coordinator() *mutation.Coordinator { return c.coordinator }

// Client returns the typed facade applications use for reads and writes.
func (c *Container) Client() *syncclient.Client { return c.client }

func (c *Container) Metrics() *metrics.Collector { return c.metrics }

// Poller returns nil when polling is disabled.
func (c *Container) Poller() *cache.Poller { return c.poller }

func (c *Container) Logger() zerolog.Logger { return c.logger }
