package cache

import "context"

// EntryStore is the storage backend behind QueryCache. It only stores and
// retrieves entries; freshness, generations and invalidation are decided
// by QueryCache. Implementations may drop entries under memory pressure.
type EntryStore interface {
	Get(key string) (Entry, bool)
	Set(key string, entry Entry)
	Delete(key string)
	Keys() []string
	Len() int
}

// Loader fetches the canonical value for a key from the remote store.
type Loader interface {
	Load(ctx context.Context, key QueryKey) (Value, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, key QueryKey) (Value, error)

func (f LoaderFunc) Load(ctx context.Context, key QueryKey) (Value, error) {
	return f(ctx, key)
}

// Observer receives cache events, typically to feed metrics.
type Observer interface {
	Hit(key QueryKey)
	Miss(key QueryKey)
	// Superseded is reported when a fetch completes after a newer write
	// to the same key and its result is discarded.
	Superseded(key QueryKey)
	FetchError(key QueryKey, err error)
	Invalidated(key QueryKey)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) Hit(QueryKey) {}
func (NoopObserver) Miss(QueryKey) {}
func (NoopObserver) Superseded(QueryKey) {}
func (NoopObserver) FetchError(QueryKey, error) {}
func (NoopObserver) Invalidated(QueryKey) {}
