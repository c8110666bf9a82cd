package mutation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/identity"
	"github.com/goliatone/go-fitsync/invalidation"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Outcome labels how a mutation settled.
type Outcome string

const (
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

// Observer receives mutation events, typically for metrics.
type Observer interface {
	Settled(t entity.Type, op entity.Op, outcome Outcome, elapsed time.Duration)
	RolledBack(t entity.Type, op entity.Op, entries int)
}

type NoopObserver struct{}

func (NoopObserver) Settled(entity.Type, entity.Op, Outcome, time.Duration) {}
func (NoopObserver) RolledBack(entity.Type, entity.Op, int) {}

// TransitionHook is called after every lifecycle transition.
type TransitionHook func(mc *Context, from, to State)

// Options tunes the coordinator.
type Options struct {
	// SerializeSameKey queues mutations of the same (entity type, owner)
	// scope so only one is in flight at a time. When off, a later
	// mutation can snapshot an earlier one's unconfirmed optimistic
	// value and a rollback can discard another pending mutation's write.
	SerializeSameKey bool
	// LockStripes is the number of scope lock stripes.
	LockStripes int
}

func DefaultOptions() Options {
	return Options{SerializeSameKey: true, LockStripes: 64}
}

type Option func(*Coordinator)

func WithOptions(opts Options) Option {
	return func(c *Coordinator) { c.opts = opts }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(c *Coordinator) { c.observer = observer }
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(c *Coordinator) { c.onTransition = hook }
}

// Coordinator runs the optimistic write protocol: snapshot and apply an
// optimistic value, call the store, then invalidate on success or restore
// the snapshot on failure. It is the only writer of the cache outside of
// fetch completion.
type Coordinator struct {
	cache    *cache.QueryCache
	router   *invalidation.Router
	registry *store.Registry
	handlers map[entity.Op]handler

	opts         Options
	locks        *scopeLocks
	clock        clockwork.Clock
	logger       zerolog.Logger
	observer     Observer
	onTransition TransitionHook
}

// New creates a coordinator. The router must define invalidation rules
// for every (entity, operation) pair the coordinator handles.
func New(qc *cache.QueryCache, router *invalidation.Router, registry *store.Registry, opts ...Option) (*Coordinator, error) {
	if qc == nil || router == nil || registry == nil {
		return nil, errors.New("mutation: cache, router and registry are required")
	}

	c := &Coordinator{
		cache:    qc,
		router:   router,
		registry: registry,
		handlers: defaultHandlers(),
		opts:     DefaultOptions(),
		clock:    clockwork.NewRealClock(),
		logger:   zerolog.Nop(),
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.locks = newScopeLocks(c.opts.LockStripes)

	if err := router.Table().Covers(c.Pairs()); err != nil {
		return nil, err
	}
	return c, nil
}

// Pairs lists every (entity, operation) pair with a handler.
func (c *Coordinator) Pairs() []invalidation.Pair {
	var pairs []invalidation.Pair
	for op, h := range c.handlers {
		for _, t := range h.types {
			pairs = append(pairs, invalidation.Pair{Entity: t, Op: op})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// Mutate runs op for the owner carried by ctx and returns the record as
// confirmed by the store. Delete returns the record as it was before
// removal.
//
// Missing owner context and invalid arguments fail before the cache is
// touched. A failed store call restores the snapshot and returns an
// adapter failure.
func (c *Coordinator) Mutate(ctx context.Context, op Operation) (entity.Entity, error) {
	if op == nil {
		return nil, syncerr.Validation("mutation: operation is required")
	}
	owner, ok := identity.Owner(ctx)
	if !ok {
		return nil, syncerr.AuthRequired(string(op.Kind()))
	}
	if err := op.Validate(); err != nil {
		return nil, syncerr.FromValidation(err, fmt.Sprintf("invalid %s operation", op.Kind()))
	}

	t := op.Entity()
	h, ok := c.handlers[op.Kind()]
	if !ok || !h.supports(t) {
		return nil, syncerr.Validation("mutation: %s is not supported for %s", op.Kind(), t)
	}
	col, err := c.registry.Collection(t)
	if err != nil {
		return nil, syncerr.Validation("%v", err)
	}

	if c.opts.SerializeSameKey {
		unlock := c.locks.lock(t, owner)
		defer unlock()
	}

	mc := &Context{
		EntityType: t,
		Kind:       op.Kind(),
		Owner:      owner,
		State:      StateIdle,
		StartedAt:  c.clock.Now(),
	}
	logger := c.logger.With().Str("entity", string(t)).Str("op", string(op.Kind())).Logger()

	if err := h.prepare(ctx, c, mc, op); err != nil {
		c.observer.Settled(t, mc.Kind, OutcomeRejected, c.clock.Since(mc.StartedAt))
		return nil, err
	}

	c.advance(mc, StateApplying)
	mc.AffectedKeys = h.affected(c, mc)
	mc.Snapshot = c.cache.ApplyOptimistic(mc.AffectedKeys, func(key cache.QueryKey, v cache.Value) (cache.Value, bool) {
		return h.optimistic(mc, key, v)
	})

	c.advance(mc, StateCalling)
	result, err := h.commit(ctx, col, mc, op)
	if err != nil {
		c.advance(mc, StateFailed)
		c.cache.Restore(mc.Snapshot)
		c.observer.RolledBack(t, mc.Kind, mc.Snapshot.Len())
		c.advance(mc, StateIdle)

		c.observer.Settled(t, mc.Kind, OutcomeRolledBack, c.clock.Since(mc.StartedAt))
		logger.Warn().Err(err).Int("restored", mc.Snapshot.Len()).Msg("mutation rolled back")
		return nil, syncerr.AdapterFailure(err, string(t), string(mc.Kind))
	}

	c.advance(mc, StateSucceeded)
	if mc.TargetID == uuid.Nil && result != nil {
		mc.TargetID = result.GetID()
	}
	patterns, rerr := c.router.Resolve(invalidation.Request{
		Entity: t,
		Op:     mc.Kind,
		Owner:  owner,
		ID:     mc.TargetID,
		Flags:  mc.Flags | templateFlag(result),
	})
	if rerr != nil {
		logger.Error().Err(rerr).Msg("no invalidation rules for settled mutation")
	}
	invalidated := c.cache.Invalidate(patterns...)
	c.advance(mc, StateIdle)

	c.observer.Settled(t, mc.Kind, OutcomeSucceeded, c.clock.Since(mc.StartedAt))
	logger.Debug().Int("invalidated", len(invalidated)).Msg("mutation settled")
	return result, nil
}

// lookup returns the owner's current copy of the target record, from a
// fresh cache entry when one holds it and otherwise through a detail read.
func (c *Coordinator) lookup(ctx context.Context, mc *Context) (entity.Entity, error) {
	if e, ok := c.cache.Find(mc.EntityType, mc.TargetID); ok && e.OwnerID() == mc.Owner {
		return e, nil
	}

	v, err := c.cache.Read(ctx, cache.DetailKey(mc.EntityType, mc.Owner, mc.TargetID))
	if err != nil {
		if syncerr.IsNotFound(err) {
			return nil, err
		}
		return nil, syncerr.AdapterFailure(err, string(mc.EntityType), "lookup")
	}
	if v.Single == nil || v.Single.OwnerID() != mc.Owner {
		return nil, syncerr.NotFound(string(mc.EntityType), mc.TargetID)
	}
	return v.Single, nil
}

func (c *Coordinator) advance(mc *Context, to State) {
	from := mc.State
	if err := mc.advance(to); err != nil {
		c.logger.Error().Err(err).Msg("mutation lifecycle violated")
		return
	}
	if c.onTransition != nil {
		c.onTransition(mc, from, to)
	}
}
