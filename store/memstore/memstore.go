// Package memstore is an in-memory store.Collection. It behaves like the
// remote document store: it assigns IDs, stamps timestamps, applies
// creation defaults and recomputes server-derived fields on every write.
package memstore

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
)

// Call describes one collection call, passed to hooks.
type Call struct {
	Entity entity.Type
	Op     string
	ID     uuid.UUID
}

const (
	CallCreate = "create"
	CallGet    = "get"
	CallUpdate = "update"
	CallDelete = "delete"
	CallList   = "list"
)

// Hook runs before every call. A non-nil error fails the call; a hook
// may also block to hold a call in flight.
type Hook func(ctx context.Context, call Call) error

// DeriveFunc recomputes server-derived fields of a record before it is
// stored.
type DeriveFunc func(e entity.Entity)

type Option func(*Collection)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Collection) { c.clock = clock }
}

func WithHook(hook Hook) Option {
	return func(c *Collection) { c.hook = hook }
}

func WithDerive(fn DeriveFunc) Option {
	return func(c *Collection) { c.derive = fn }
}

// Collection is a concurrency-safe in-memory collection of one entity
// type. Records are cloned on the way in and out.
type Collection struct {
	t      entity.Type
	docs   *xsync.MapOf[uuid.UUID, entity.Entity]
	calls  *xsync.MapOf[string, int]
	clock  clockwork.Clock
	hook   Hook
	derive DeriveFunc
}

var _ store.Collection = (*Collection)(nil)

// New creates an empty collection for t.
func New(t entity.Type, opts ...Option) *Collection {
	c := &Collection{
		t:     t,
		docs:  xsync.NewMapOf[uuid.UUID, entity.Entity](),
		calls: xsync.NewMapOf[string, int](),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry builds a store.Registry with one collection per entity type,
// all sharing opts.
func Registry(opts ...Option) (*store.Registry, map[entity.Type]*Collection, error) {
	cols := make(map[entity.Type]*Collection, len(entity.Types()))
	list := make([]store.Collection, 0, len(entity.Types()))
	for _, t := range entity.Types() {
		c := New(t, opts...)
		cols[t] = c
		list = append(list, c)
	}
	reg, err := store.NewRegistry(list...)
	if err != nil {
		return nil, nil, err
	}
	return reg, cols, nil
}

func (c *Collection) Type() entity.Type { return c.t }

// Seed stores records as given, without stamping or defaults.
func (c *Collection) Seed(records ...entity.Entity) {
	for _, r := range records {
		c.docs.Store(r.GetID(), r.Clone())
	}
}

// Len returns the number of stored records.
func (c *Collection) Len() int { return c.docs.Size() }

// Calls returns how many calls of op were made, failed ones included.
func (c *Collection) Calls(op string) int {
	n, _ := c.calls.Load(op)
	return n
}

func (c *Collection) Create(ctx context.Context, record entity.Entity) (entity.Entity, error) {
	if err := c.enter(ctx, CallCreate, uuid.Nil); err != nil {
		return nil, err
	}
	if record == nil || record.EntityType() != c.t {
		return nil, syncerr.Validation("memstore: %s collection cannot store %T", c.t, record)
	}

	now := c.clock.Now()
	doc := record.Clone()
	doc.SetID(uuid.New())
	doc.Stamp(now)
	doc.ApplyDefaults(now)
	if c.derive != nil {
		c.derive(doc)
	}

	c.docs.Store(doc.GetID(), doc)
	return doc.Clone(), nil
}

func (c *Collection) GetByID(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	if err := c.enter(ctx, CallGet, id); err != nil {
		return nil, err
	}
	doc, ok := c.docs.Load(id)
	if !ok {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (c *Collection) Update(ctx context.Context, id uuid.UUID, patch entity.Patch) (entity.Entity, error) {
	if err := c.enter(ctx, CallUpdate, id); err != nil {
		return nil, err
	}

	var applyErr error
	updated, ok := c.docs.Compute(id, func(old entity.Entity, loaded bool) (entity.Entity, bool) {
		if !loaded {
			applyErr = syncerr.NotFound(string(c.t), id)
			return old, true
		}
		doc := old.Clone()
		if err := patch.ApplyTo(doc); err != nil {
			applyErr = err
			return old, false
		}
		doc.Touch(c.clock.Now())
		if c.derive != nil {
			c.derive(doc)
		}
		return doc, false
	})
	if applyErr != nil {
		return nil, applyErr
	}
	if !ok {
		return nil, syncerr.NotFound(string(c.t), id)
	}
	return updated.Clone(), nil
}

func (c *Collection) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.enter(ctx, CallDelete, id); err != nil {
		return err
	}
	if _, ok := c.docs.LoadAndDelete(id); !ok {
		return syncerr.NotFound(string(c.t), id)
	}
	return nil
}

func (c *Collection) List(ctx context.Context, q store.Query) ([]entity.Entity, error) {
	if err := c.enter(ctx, CallList, uuid.Nil); err != nil {
		return nil, err
	}

	var out []entity.Entity
	var matchErr error
	c.docs.Range(func(_ uuid.UUID, doc entity.Entity) bool {
		ok, err := matches(doc, q)
		if err != nil {
			matchErr = err
			return false
		}
		if ok {
			out = append(out, doc.Clone())
		}
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		a, okA := column(out[i], orderBy)
		b, okB := column(out[j], orderBy)
		if !okA || !okB {
			sortErr = errors.New("memstore: unknown order column " + orderBy)
			return false
		}
		if cmp := compare(a, b); cmp != 0 {
			return cmp > 0
		}
		return out[i].GetID().String() < out[j].GetID().String()
	})
	if sortErr != nil {
		return nil, sortErr
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []entity.Entity{}
	}
	return out, nil
}

func (c *Collection) enter(ctx context.Context, op string, id uuid.UUID) error {
	c.calls.Compute(op, func(n int, _ bool) (int, bool) { return n + 1, false })
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.hook != nil {
		return c.hook(ctx, Call{Entity: c.t, Op: op, ID: id})
	}
	return nil
}

func matches(doc entity.Entity, q store.Query) (bool, error) {
	if q.Owner != "" && doc.OwnerID() != q.Owner {
		return false, nil
	}

	for col, want := range q.Filters {
		got, ok := column(doc, col)
		if !ok {
			return false, errors.New("memstore: unknown filter column " + col)
		}
		if compare(got, normalize(reflect.ValueOf(want))) != 0 {
			return false, nil
		}
	}

	if q.RangeField == "" {
		return true, nil
	}
	v, ok := column(doc, q.RangeField)
	if !ok {
		return false, errors.New("memstore: unknown range column " + q.RangeField)
	}
	ts, isTime := v.(time.Time)
	if !isTime {
		// unset optional timestamps never fall inside a range
		return false, nil
	}
	if !q.From.IsZero() && ts.Before(q.From) {
		return false, nil
	}
	if !q.To.IsZero() && ts.After(q.To) {
		return false, nil
	}
	if !q.Before.IsZero() && !ts.Before(q.Before) {
		return false, nil
	}
	return true, nil
}

// column returns the normalized value of the field tagged bun:"name".
func column(doc entity.Entity, name string) (any, bool) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	return lookup(v, name)
}

func lookup(v reflect.Value, name string) (any, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if got, ok := lookup(v.Field(i), name); ok {
				return got, true
			}
			continue
		}
		tag := f.Tag.Get("bun")
		if tag == "" || tag == "-" {
			continue
		}
		if col, _, _ := strings.Cut(tag, ","); col == name {
			return normalize(v.Field(i)), true
		}
	}
	return nil, false
}

// normalize reduces a value to time.Time, string, bool, int64, float64 or
// nil so values of named types compare equal to their literals.
func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if ts, ok := v.Interface().(time.Time); ok {
		return ts
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return v.Interface()
}

// compare orders two normalized values; values of different kinds sort
// nil first and otherwise compare unequal.
func compare(a, b any) int {
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if b == nil {
		return 1
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return 1
}
