package syncclient

import (
	"context"
	"fmt"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	"github.com/jonboulle/clockwork"
)

// DefaultRecentLimit bounds recent queries whose key carries no limit.
const DefaultRecentLimit = 10

// timeline is the timestamp each entity type is listed by, newest first.
var timeline = map[entity.Type]string{
	entity.TypeWorkout: "performed_at",
	entity.TypeGoal:    "created_at",
	entity.TypeRoutine: "created_at",
	entity.TypeBMI:     "recorded_at",
}

// Loader fetches cache misses from the collections of a store registry.
// Every query kind maps to one store call.
type Loader struct {
	registry *store.Registry
	clock    clockwork.Clock
}

var _ cache.Loader = (*Loader)(nil)

// NewLoader creates a loader over registry. The clock decides which goals
// are overdue.
func NewLoader(registry *store.Registry, clock clockwork.Clock) *Loader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{registry: registry, clock: clock}
}

func (l *Loader) Load(ctx context.Context, key cache.QueryKey) (cache.Value, error) {
	col, err := l.registry.Collection(key.Entity)
	if err != nil {
		return cache.Value{}, err
	}

	if key.Kind == cache.KindDetail {
		e, err := col.GetByID(ctx, key.ID)
		if err != nil {
			return cache.Value{}, err
		}
		if e == nil || (key.Owner != "" && e.OwnerID() != key.Owner) {
			return cache.Value{}, syncerr.NotFound(string(key.Entity), key.ID)
		}
		return cache.One(e), nil
	}

	q, err := l.Plan(key)
	if err != nil {
		return cache.Value{}, err
	}
	list, err := col.List(ctx, q)
	if err != nil {
		return cache.Value{}, err
	}

	if key.Kind == cache.KindLatest {
		if len(list) == 0 {
			return cache.One(nil), nil
		}
		return cache.One(list[0]), nil
	}
	return cache.Many(list), nil
}

// Plan translates a list-shaped key into a store query.
func (l *Loader) Plan(key cache.QueryKey) (store.Query, error) {
	order, ok := timeline[key.Entity]
	if !ok {
		return store.Query{}, fmt.Errorf("syncclient: unknown entity %q", key.Entity)
	}

	q := store.Query{
		Owner:   key.Owner,
		OrderBy: order,
		Limit:   key.Limit,
		Filters: map[string]any{},
	}
	if key.Category != "" {
		q.Filters["category"] = key.Category
	}

	switch key.Kind {
	case cache.KindList:
	case cache.KindDateRange:
		from, to, err := key.Range()
		if err != nil {
			return store.Query{}, err
		}
		q.RangeField, q.From, q.To = order, from, to
	case cache.KindRecent:
		if q.Limit <= 0 {
			q.Limit = DefaultRecentLimit
		}
	case cache.KindTemplates:
		q.Filters["is_template"] = true
	case cache.KindActive:
		q.Filters["status"] = entity.GoalActive
	case cache.KindOverdue:
		q.Filters["status"] = entity.GoalActive
		q.RangeField = "target_date"
		q.Before = l.clock.Now()
	case cache.KindMostUsed:
		q.OrderBy = "times_used"
	case cache.KindPublic:
		q.Owner = ""
		q.Filters["is_public"] = true
	case cache.KindLatest:
		q.Limit = 1
	default:
		return store.Query{}, fmt.Errorf("syncclient: no query plan for %s/%s", key.Entity, key.Kind)
	}
	return q, nil
}
