// Package store defines the adapter contract the sync core consumes: one
// Collection per entity type offering create, get, update, delete and
// list primitives against the remote document store.
//
// The adapter offers single-document durability only. The core never
// assumes two collection calls commit together; it relies on
// invalidation-triggered refetch to converge instead.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

// Query filters a List call. Results are ordered by OrderBy, newest
// first.
type Query struct {
	Owner string
	// RangeField is the timestamp column From and To apply to. Zero bounds
	// are open.
	RangeField string
	From       time.Time
	To         time.Time
	// Filters are equality filters on columns.
	Filters map[string]any
	// Before restricts RangeField to values strictly before the time,
	// used for overdue detection.
	Before  time.Time
	OrderBy string
	Limit   int
}

// Collection is the remote store for one entity type.
type Collection interface {
	Type() entity.Type
	Create(ctx context.Context, record entity.Entity) (entity.Entity, error)
	// GetByID returns (nil, nil) when the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (entity.Entity, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.Patch) (entity.Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q Query) ([]entity.Entity, error)
}

// Registry maps entity types to their collections.
type Registry struct {
	collections map[entity.Type]Collection
}

// NewRegistry registers the given collections. Registering two
// collections for one type is an error.
func NewRegistry(collections ...Collection) (*Registry, error) {
	r := &Registry{collections: make(map[entity.Type]Collection, len(collections))}
	for _, c := range collections {
		if c == nil {
			return nil, fmt.Errorf("store: nil collection")
		}
		t := c.Type()
		if !t.Valid() {
			return nil, fmt.Errorf("store: unknown entity type %q", t)
		}
		if _, dup := r.collections[t]; dup {
			return nil, fmt.Errorf("store: duplicate collection for %s", t)
		}
		r.collections[t] = c
	}
	return r, nil
}

// Collection returns the collection for t.
func (r *Registry) Collection(t entity.Type) (Collection, error) {
	c, ok := r.collections[t]
	if !ok {
		return nil, fmt.Errorf("store: no collection registered for %s", t)
	}
	return c, nil
}

// Types returns the registered entity types, sorted.
func (r *Registry) Types() []entity.Type {
	types := make([]entity.Type, 0, len(r.collections))
	for t := range r.collections {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
