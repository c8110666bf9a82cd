package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Option configures a QueryCache.
type Option func(*QueryCache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *QueryCache) { c.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *QueryCache) { c.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(c *QueryCache) { c.observer = observer }
}

func WithStaleness(table StalenessTable) Option {
	return func(c *QueryCache) { c.staleness = table }
}

func WithKeySerializer(serializer KeySerializer) Option {
	return func(c *QueryCache) { c.serializer = serializer }
}

// ApplyFunc computes the optimistic value for one slot. It receives a
// private copy of the current value and reports whether it changed it.
type ApplyFunc func(key QueryKey, current Value) (next Value, changed bool)

// QueryCache is the read-through cache of query results. It owns every
// entry; outside of fetch completion only the mutation coordinator is
// expected to write into it.
//
// Every slot carries a generation. Writes, restores and invalidations
// bump it and cancel in-flight fetches for the slot; a fetch that
// completes under a newer generation is discarded, so mutation-sourced
// values always win over older fetches.
type QueryCache struct {
	mu         sync.Mutex
	store      EntryStore
	loader     Loader
	serializer KeySerializer
	staleness  StalenessTable
	clock      clockwork.Clock
	logger     zerolog.Logger
	observer   Observer

	// registry maps serialized keys back to structured keys for pattern scans.
	registry    *xsync.MapOf[string, QueryKey]
	generations map[string]uint64
	inflight    map[string]map[uint64]context.CancelFunc
	fetchSeq    uint64
}

// New creates a QueryCache over store, fetching misses through loader.
func New(store EntryStore, loader Loader, opts ...Option) (*QueryCache, error) {
	if store == nil {
		return nil, errors.New("cache: entry store is required")
	}
	if loader == nil {
		return nil, errors.New("cache: loader is required")
	}

	c := &QueryCache{
		store:       store,
		loader:      loader,
		serializer:  defaultSerializer,
		staleness:   DefaultStaleness(),
		clock:       clockwork.NewRealClock(),
		logger:      zerolog.Nop(),
		observer:    NoopObserver{},
		registry:    xsync.NewMapOf[string, QueryKey](),
		generations: make(map[string]uint64),
		inflight:    make(map[string]map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.staleness.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Staleness returns the configured staleness table.
func (c *QueryCache) Staleness() StalenessTable {
	return c.staleness
}

// Read returns the cached value for key while it is fresh, otherwise it
// fetches through the loader using the key's configured staleness window.
func (c *QueryCache) Read(ctx context.Context, key QueryKey) (Value, error) {
	staleness, err := c.staleness.Lookup(key.Entity, key.Kind)
	if err != nil {
		return Value{}, err
	}
	return c.ReadWithStaleness(ctx, key, staleness)
}

// ReadWithStaleness is Read with an explicit staleness window. A fresh
// entry (now < StaleAfter) is returned without calling the loader.
// Concurrent misses on the same key are not deduplicated.
func (c *QueryCache) ReadWithStaleness(ctx context.Context, key QueryKey, staleness time.Duration) (Value, error) {
	sk := c.serializer.SerializeKey(key)

	c.mu.Lock()
	if e, ok := c.store.Get(sk); ok && e.Fresh(c.clock.Now()) {
		v := e.Value.Clone()
		c.mu.Unlock()
		c.observer.Hit(key)
		return v, nil
	}
	ticket := c.beginFetch(ctx, sk)
	c.mu.Unlock()

	c.observer.Miss(key)
	return c.completeFetch(key, sk, staleness, ticket)
}

// Refresh fetches key regardless of its freshness and stores the result.
func (c *QueryCache) Refresh(ctx context.Context, key QueryKey) (Value, error) {
	staleness, err := c.staleness.Lookup(key.Entity, key.Kind)
	if err != nil {
		return Value{}, err
	}
	sk := c.serializer.SerializeKey(key)

	c.mu.Lock()
	ticket := c.beginFetch(ctx, sk)
	c.mu.Unlock()

	return c.completeFetch(key, sk, staleness, ticket)
}

type fetchTicket struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     uint64
	gen    uint64
}

// beginFetch records an in-flight fetch for sk. Callers hold c.mu.
func (c *QueryCache) beginFetch(ctx context.Context, sk string) fetchTicket {
	fetchCtx, cancel := context.WithCancel(ctx)
	c.fetchSeq++
	t := fetchTicket{ctx: fetchCtx, cancel: cancel, id: c.fetchSeq, gen: c.generations[sk]}

	pending, ok := c.inflight[sk]
	if !ok {
		pending = make(map[uint64]context.CancelFunc)
		c.inflight[sk] = pending
	}
	pending[t.id] = cancel
	return t
}

func (c *QueryCache) completeFetch(key QueryKey, sk string, staleness time.Duration, t fetchTicket) (Value, error) {
	value, err := c.loader.Load(t.ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	t.cancel()
	if pending, ok := c.inflight[sk]; ok {
		delete(pending, t.id)
		if len(pending) == 0 {
			delete(c.inflight, sk)
		}
	}

	if c.generations[sk] != t.gen {
		c.observer.Superseded(key)
		c.logger.Debug().Str("key", sk).Msg("discarding superseded fetch")
		if current, ok := c.store.Get(sk); ok {
			return current.Value.Clone(), nil
		}
		if err != nil {
			return Value{}, err
		}
		return value, nil
	}

	if err != nil {
		c.observer.FetchError(key, err)
		c.logger.Debug().Err(err).Str("key", sk).Msg("fetch failed")
		return Value{}, err
	}

	now := c.clock.Now()
	c.put(sk, Entry{
		Key:        key,
		Value:      value.Clone(),
		FetchedAt:  now,
		StaleAfter: now.Add(staleness),
	})
	return value, nil
}

// Write replaces the value held for key. An existing entry keeps its
// fetch and staleness timestamps; a new entry is created already stale.
func (c *QueryCache) Write(key QueryKey, value Value) {
	sk := c.serializer.SerializeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	entry := Entry{Key: key, Value: value.Clone(), FetchedAt: now, StaleAfter: now}
	if existing, ok := c.store.Get(sk); ok {
		entry.FetchedAt = existing.FetchedAt
		entry.StaleAfter = existing.StaleAfter
	}

	c.supersede(sk)
	c.put(sk, entry)
}

// ApplyOptimistic runs fn over every existing entry among keys and writes
// the values it changed. The returned snapshot holds deep copies of the
// replaced entries, captured before each write. The whole step runs under
// the cache lock.
func (c *QueryCache) ApplyOptimistic(keys []QueryKey, fn ApplyFunc) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap Snapshot
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sk := c.serializer.SerializeKey(key)
		if _, dup := seen[sk]; dup {
			continue
		}
		seen[sk] = struct{}{}

		existing, ok := c.store.Get(sk)
		if !ok {
			continue
		}
		next, changed := fn(key, existing.Value.Clone())
		if !changed {
			continue
		}

		snap.entries = append(snap.entries, existing.Clone())
		c.supersede(sk)
		existing.Value = next
		c.put(sk, existing)
	}
	return snap
}

// Restore writes the snapshot's entries back verbatim.
func (c *QueryCache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range snap.entries {
		sk := c.serializer.SerializeKey(e.Key)
		c.supersede(sk)
		c.put(sk, e.Clone())
	}
}

// Invalidate marks every entry matching any pattern stale (StaleAfter =
// now) so the next Read refetches it. It returns the invalidated keys.
func (c *QueryCache) Invalidate(patterns ...Pattern) []QueryKey {
	if len(patterns) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	var invalidated []QueryKey
	c.registry.Range(func(sk string, key QueryKey) bool {
		if !matchesAny(patterns, key) {
			return true
		}
		e, ok := c.store.Get(sk)
		if !ok {
			c.registry.Delete(sk)
			return true
		}
		c.supersede(sk)
		e.StaleAfter = now
		c.store.Set(sk, e)
		invalidated = append(invalidated, key)
		c.observer.Invalidated(key)
		return true
	})

	c.logger.Debug().Int("keys", len(invalidated)).Msg("invalidated cache entries")
	return invalidated
}

// Keys returns the cached keys matching p, ordered by serialized key.
func (c *QueryCache) Keys(p Pattern) []QueryKey {
	type pair struct {
		sk  string
		key QueryKey
	}
	var found []pair
	c.registry.Range(func(sk string, key QueryKey) bool {
		if p.Matches(key) {
			found = append(found, pair{sk, key})
		}
		return true
	})
	sort.Slice(found, func(i, j int) bool { return found[i].sk < found[j].sk })

	keys := make([]QueryKey, 0, len(found))
	for _, f := range found {
		if _, ok := c.store.Get(f.sk); ok {
			keys = append(keys, f.key)
		}
	}
	return keys
}

// Peek returns a copy of the entry for key without fetching.
func (c *QueryCache) Peek(key QueryKey) (Entry, bool) {
	sk := c.serializer.SerializeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(sk)
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Find returns a copy of the cached entity of type t with the given id,
// looking only at fresh entries. Detail entries are preferred over list
// entries.
func (c *QueryCache) Find(t entity.Type, id uuid.UUID) (entity.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	var fromList entity.Entity
	var found entity.Entity
	c.registry.Range(func(sk string, key QueryKey) bool {
		if key.Entity != t {
			return true
		}
		e, ok := c.store.Get(sk)
		if !ok || !e.Fresh(now) {
			return true
		}
		match, ok := e.Value.Find(id)
		if !ok {
			return true
		}
		if key.Kind == KindDetail {
			found = match
			return false
		}
		if fromList == nil {
			fromList = match
		}
		return true
	})

	if found == nil {
		found = fromList
	}
	if found == nil {
		return nil, false
	}
	return found.Clone(), true
}

// Len returns the number of entries held by the store.
func (c *QueryCache) Len() int {
	return c.store.Len()
}

// Purge drops every entry and cancels in-flight fetches.
func (c *QueryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Range(func(sk string, _ QueryKey) bool {
		c.supersede(sk)
		c.store.Delete(sk)
		c.registry.Delete(sk)
		return true
	})
}

// supersede bumps the generation of sk and cancels its in-flight fetches.
// Callers hold c.mu.
func (c *QueryCache) supersede(sk string) {
	c.generations[sk]++
	for id, cancel := range c.inflight[sk] {
		cancel()
		delete(c.inflight[sk], id)
	}
	delete(c.inflight, sk)
}

// put stores the entry and registers its key. Callers hold c.mu.
func (c *QueryCache) put(sk string, e Entry) {
	c.store.Set(sk, e)
	c.registry.Store(sk, e.Key)
}

func matchesAny(patterns []Pattern, key QueryKey) bool {
	for _, p := range patterns {
		if p.Matches(key) {
			return true
		}
	}
	return false
}
