// Package bunstore implements store.Collection on top of go-repository-bun
// repositories, so any bun dialect (sqlite, postgres) can serve as the
// remote store.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/uptrace/bun"
)

// Repository is the subset of repository.Repository the collection
// needs.
type Repository[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

var _ Repository[*entity.Workout] = (repository.Repository[*entity.Workout])(nil)

// DeriveFunc fills server-computed fields before a record is written.
type DeriveFunc func(e entity.Entity)

type Option func(*options)

type options struct {
	clock  clockwork.Clock
	derive DeriveFunc
}

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

func WithDerive(fn DeriveFunc) Option {
	return func(o *options) { o.derive = fn }
}

// Collection adapts a typed repository to store.Collection.
type Collection[T entity.Entity] struct {
	t      entity.Type
	repo   Repository[T]
	clock  clockwork.Clock
	derive DeriveFunc
}

// New wraps repo. The entity type is taken from T.
func New[T entity.Entity](repo Repository[T], opts ...Option) (*Collection[T], error) {
	if repo == nil {
		return nil, errors.New("bunstore: repository is required")
	}
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	t := recordType(zero)
	if !t.Valid() {
		return nil, fmt.Errorf("bunstore: %T is not a known entity", zero)
	}
	return &Collection[T]{t: t, repo: repo, clock: o.clock, derive: o.derive}, nil
}

// recordType resolves the entity type of T without needing a value.
func recordType[T entity.Entity](_ T) entity.Type {
	for _, t := range entity.Types() {
		if _, ok := entity.New(t).(T); ok {
			return t
		}
	}
	return ""
}

// NewRepository builds a go-repository-bun repository for T over db.
func NewRepository[T entity.Entity](db *bun.DB) repository.Repository[T] {
	var zero T
	t := recordType(zero)
	return repository.NewRepository[T](db, repository.ModelHandlers[T]{
		NewRecord: func() T {
			return entity.New(t).(T)
		},
		GetID: func(record T) uuid.UUID {
			return record.GetID()
		},
		SetID: func(record T, id uuid.UUID) {
			record.SetID(id)
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

func (c *Collection[T]) Type() entity.Type { return c.t }

func (c *Collection[T]) Create(ctx context.Context, record entity.Entity) (entity.Entity, error) {
	rec, ok := record.(T)
	if !ok || record == nil {
		return nil, syncerr.Validation("bunstore: %s collection cannot store %T", c.t, record)
	}

	now := c.clock.Now()
	doc := rec.Clone().(T)
	doc.SetID(uuid.New())
	doc.Stamp(now)
	doc.ApplyDefaults(now)
	if c.derive != nil {
		c.derive(doc)
	}

	created, err := c.repo.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("bunstore: create %s: %w", c.t, err)
	}
	return created, nil
}

func (c *Collection[T]) GetByID(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	rec, found, err := c.get(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	return rec, nil
}

// Update reads the record, merges the patch and writes the whole row
// back. The read and write are not atomic.
func (c *Collection[T]) Update(ctx context.Context, id uuid.UUID, patch entity.Patch) (entity.Entity, error) {
	rec, found, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, syncerr.NotFound(string(c.t), id)
	}

	if err := patch.ApplyTo(rec); err != nil {
		return nil, err
	}
	rec.Touch(c.clock.Now())
	if c.derive != nil {
		c.derive(rec)
	}

	updated, err := c.repo.Update(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("bunstore: update %s %s: %w", c.t, id, err)
	}
	return updated, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id uuid.UUID) error {
	rec, found, err := c.get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return syncerr.NotFound(string(c.t), id)
	}
	if err := c.repo.Delete(ctx, rec); err != nil {
		return fmt.Errorf("bunstore: delete %s %s: %w", c.t, id, err)
	}
	return nil
}

func (c *Collection[T]) List(ctx context.Context, q store.Query) ([]entity.Entity, error) {
	records, _, err := c.repo.List(ctx, Criteria(q)...)
	if err != nil {
		return nil, fmt.Errorf("bunstore: list %s: %w", c.t, err)
	}
	out := make([]entity.Entity, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	return out, nil
}

func (c *Collection[T]) get(ctx context.Context, id uuid.UUID) (rec T, found bool, err error) {
	rec, err = c.repo.GetByID(ctx, id.String())
	switch {
	case isNotFound(err):
		return rec, false, nil
	case err != nil:
		return rec, false, fmt.Errorf("bunstore: get %s %s: %w", c.t, id, err)
	}
	var zero T
	return rec, any(rec) != any(zero), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var e *goerrors.Error
	return errors.As(err, &e) && e.Category == goerrors.CategoryNotFound
}

// Criteria translates a store query into select criteria. Filters are
// applied in column order so the generated SQL is stable.
func Criteria(q store.Query) []repository.SelectCriteria {
	var criteria []repository.SelectCriteria

	if q.Owner != "" {
		criteria = append(criteria, where("? = ?", "user_id", q.Owner))
	}

	columns := make([]string, 0, len(q.Filters))
	for col := range q.Filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	for _, col := range columns {
		criteria = append(criteria, where("? = ?", col, q.Filters[col]))
	}

	if q.RangeField != "" {
		if !q.From.IsZero() {
			criteria = append(criteria, where("? >= ?", q.RangeField, q.From))
		}
		if !q.To.IsZero() {
			criteria = append(criteria, where("? <= ?", q.RangeField, q.To))
		}
		if !q.Before.IsZero() {
			criteria = append(criteria, where("? < ?", q.RangeField, q.Before))
		}
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("? IS NOT NULL", bun.Ident(q.RangeField))
		})
	}

	order := q.OrderBy
	if order == "" {
		order = "created_at"
	}
	criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.OrderExpr("? DESC, ? DESC", bun.Ident(order), bun.Ident("id"))
	})

	if q.Limit > 0 {
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Limit(q.Limit)
		})
	}
	return criteria
}

func where(expr, column string, value any) repository.SelectCriteria {
	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where(expr, bun.Ident(column), value)
	}
}

// Registry builds a store registry over db with one repository-backed
// collection per entity type. derive applies to BMI entries.
func Registry(db *bun.DB, opts ...Option) (*store.Registry, error) {
	workouts, err := New(NewRepository[*entity.Workout](db), opts...)
	if err != nil {
		return nil, err
	}
	goals, err := New(NewRepository[*entity.Goal](db), opts...)
	if err != nil {
		return nil, err
	}
	routines, err := New(NewRepository[*entity.Routine](db), opts...)
	if err != nil {
		return nil, err
	}
	bmi, err := New(NewRepository[*entity.BMIEntry](db), opts...)
	if err != nil {
		return nil, err
	}
	return store.NewRegistry(workouts, goals, routines, bmi)
}

// CreateSchema creates the entity tables when they do not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*entity.Workout)(nil),
		(*entity.Goal)(nil),
		(*entity.Routine)(nil),
		(*entity.BMIEntry)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("bunstore: create table for %T: %w", m, err)
		}
	}
	return nil
}
