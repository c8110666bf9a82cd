package syncclient

import (
	"context"
	"time"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/identity"
	"github.com/goliatone/go-fitsync/mutation"
	"github.com/goliatone/go-fitsync/syncerr"
	"github.com/google/uuid"
)

// Client is the typed entry point for applications: cached reads per
// query kind and mutations routed through the coordinator.
type Client struct {
	Workouts *Workouts
	Goals    *Goals
	Routines *Routines
	BMI      *BMI
}

// New creates a client over a cache and the coordinator writing into it.
func New(qc *cache.QueryCache, coord *mutation.Coordinator) *Client {
	return &Client{
		Workouts: &Workouts{collection[*entity.Workout]{entity.TypeWorkout, qc, coord}},
		Goals:    &Goals{collection[*entity.Goal]{entity.TypeGoal, qc, coord}},
		Routines: &Routines{collection[*entity.Routine]{entity.TypeRoutine, qc, coord}},
		BMI:      &BMI{collection[*entity.BMIEntry]{entity.TypeBMI, qc, coord}},
	}
}

// collection holds the read and write paths shared by every entity type.
type collection[T entity.Entity] struct {
	t     entity.Type
	cache *cache.QueryCache
	coord *mutation.Coordinator
}

func (c collection[T]) owner(ctx context.Context, operation string) (string, error) {
	owner, ok := identity.Owner(ctx)
	if !ok {
		return "", syncerr.AuthRequired(operation)
	}
	return owner, nil
}

func (c collection[T]) list(ctx context.Context, key cache.QueryKey) ([]T, error) {
	v, err := c.cache.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(v.List))
	for _, e := range v.List {
		out = append(out, e.(T))
	}
	return out, nil
}

// one reads a single-valued key. found is false for a known absence.
func (c collection[T]) one(ctx context.Context, key cache.QueryKey) (rec T, found bool, err error) {
	v, err := c.cache.Read(ctx, key)
	if err != nil || v.Single == nil {
		return rec, false, err
	}
	return v.Single.(T), true, nil
}

func (c collection[T]) ownedList(ctx context.Context, kind cache.QueryKind, build func(owner string) cache.QueryKey) ([]T, error) {
	owner, err := c.owner(ctx, string(c.t)+" "+string(kind))
	if err != nil {
		return nil, err
	}
	return c.list(ctx, build(owner))
}

// List returns every record of the owner, newest first.
func (c collection[T]) List(ctx context.Context) ([]T, error) {
	return c.ownedList(ctx, cache.KindList, func(owner string) cache.QueryKey {
		return cache.ListKey(c.t, owner)
	})
}

// ListByCategory is List restricted to one category.
func (c collection[T]) ListByCategory(ctx context.Context, category string) ([]T, error) {
	return c.ownedList(ctx, cache.KindList, func(owner string) cache.QueryKey {
		return cache.ListKey(c.t, owner).WithCategory(category)
	})
}

// Get returns one record of the owner, or a not found error.
func (c collection[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	owner, err := c.owner(ctx, string(c.t)+" detail")
	if err != nil {
		return zero, err
	}
	rec, found, err := c.one(ctx, cache.DetailKey(c.t, owner, id))
	if err == nil && !found {
		return zero, syncerr.NotFound(string(c.t), id)
	}
	return rec, err
}

func (c collection[T]) Create(ctx context.Context, record T) (T, error) {
	return c.mutate(ctx, mutation.Create{Record: record})
}

func (c collection[T]) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := c.coord.Mutate(ctx, mutation.Delete{Type: c.t, ID: id})
	return err
}

func (c collection[T]) update(ctx context.Context, id uuid.UUID, patch entity.Patch) (T, error) {
	return c.mutate(ctx, mutation.Update{ID: id, Patch: patch})
}

func (c collection[T]) mutate(ctx context.Context, op mutation.Operation) (T, error) {
	var zero T
	e, err := c.coord.Mutate(ctx, op)
	if err != nil || e == nil {
		return zero, err
	}
	return e.(T), nil
}

type Workouts struct {
	collection[*entity.Workout]
}

// DateRange lists workouts performed within the inclusive day range.
func (w *Workouts) DateRange(ctx context.Context, from, to time.Time) ([]*entity.Workout, error) {
	return w.ownedList(ctx, cache.KindDateRange, func(owner string) cache.QueryKey {
		return cache.DateRangeKey(entity.TypeWorkout, owner, from, to)
	})
}

// Recent lists the latest limit workouts.
func (w *Workouts) Recent(ctx context.Context, limit int) ([]*entity.Workout, error) {
	return w.ownedList(ctx, cache.KindRecent, func(owner string) cache.QueryKey {
		return cache.RecentKey(entity.TypeWorkout, owner, limit)
	})
}

// Templates lists the workouts flagged for reuse.
func (w *Workouts) Templates(ctx context.Context) ([]*entity.Workout, error) {
	return w.ownedList(ctx, cache.KindTemplates, func(owner string) cache.QueryKey {
		return cache.KindKey(entity.TypeWorkout, cache.KindTemplates, owner)
	})
}

func (w *Workouts) Update(ctx context.Context, id uuid.UUID, patch *entity.WorkoutPatch) (*entity.Workout, error) {
	return w.update(ctx, id, patch)
}

type Goals struct {
	collection[*entity.Goal]
}

// Active lists goals with status active.
func (g *Goals) Active(ctx context.Context) ([]*entity.Goal, error) {
	return g.ownedList(ctx, cache.KindActive, func(owner string) cache.QueryKey {
		return cache.KindKey(entity.TypeGoal, cache.KindActive, owner)
	})
}

// Overdue lists active goals whose target date has passed. The session
// poller refreshes these keys on a fixed interval.
func (g *Goals) Overdue(ctx context.Context) ([]*entity.Goal, error) {
	return g.ownedList(ctx, cache.KindOverdue, func(owner string) cache.QueryKey {
		return cache.KindKey(entity.TypeGoal, cache.KindOverdue, owner)
	})
}

func (g *Goals) Update(ctx context.Context, id uuid.UUID, patch *entity.GoalPatch) (*entity.Goal, error) {
	return g.update(ctx, id, patch)
}

// UpdateProgress records a new current value. Values below the current
// one are rejected.
func (g *Goals) UpdateProgress(ctx context.Context, id uuid.UUID, value float64) (*entity.Goal, error) {
	return g.mutate(ctx, mutation.ProgressUpdate{GoalID: id, NewValue: value})
}

type Routines struct {
	collection[*entity.Routine]
}

// MostUsed lists the owner's routines by usage count.
func (r *Routines) MostUsed(ctx context.Context, limit int) ([]*entity.Routine, error) {
	return r.ownedList(ctx, cache.KindMostUsed, func(owner string) cache.QueryKey {
		return cache.KindKey(entity.TypeRoutine, cache.KindMostUsed, owner).WithLimit(limit)
	})
}

// Public lists routines shared by any owner. It needs no owner context.
func (r *Routines) Public(ctx context.Context, category string) ([]*entity.Routine, error) {
	return r.list(ctx, cache.KindKey(entity.TypeRoutine, cache.KindPublic, "").WithCategory(category))
}

func (r *Routines) Update(ctx context.Context, id uuid.UUID, patch *entity.RoutinePatch) (*entity.Routine, error) {
	return r.update(ctx, id, patch)
}

// IncrementUsage counts one more use of the routine.
func (r *Routines) IncrementUsage(ctx context.Context, id uuid.UUID) (*entity.Routine, error) {
	return r.mutate(ctx, mutation.UsageIncrement{RoutineID: id})
}

type BMI struct {
	collection[*entity.BMIEntry]
}

// History lists every entry, most recent first.
func (b *BMI) History(ctx context.Context) ([]*entity.BMIEntry, error) {
	return b.List(ctx)
}

// Latest returns the most recent entry, or nil when there is none.
func (b *BMI) Latest(ctx context.Context) (*entity.BMIEntry, error) {
	owner, err := b.owner(ctx, "bmi latest")
	if err != nil {
		return nil, err
	}
	latest, _, err := b.one(ctx, cache.KindKey(entity.TypeBMI, cache.KindLatest, owner))
	return latest, err
}

// DateRange lists entries recorded within the inclusive day range.
func (b *BMI) DateRange(ctx context.Context, from, to time.Time) ([]*entity.BMIEntry, error) {
	return b.ownedList(ctx, cache.KindDateRange, func(owner string) cache.QueryKey {
		return cache.DateRangeKey(entity.TypeBMI, owner, from, to)
	})
}

func (b *BMI) Update(ctx context.Context, id uuid.UUID, patch *entity.BMIPatch) (*entity.BMIEntry, error) {
	return b.update(ctx, id, patch)
}
