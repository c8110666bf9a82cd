package mutation

import (
	"context"
	"slices"
	"time"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/invalidation"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	"github.com/google/uuid"
)

// handler implements one operation kind. prepare runs before the cache is
// touched and may reject the mutation; optimistic computes the new value
// of one cached slot; commit performs the remote call.
type handler struct {
	types      []entity.Type
	prepare    func(ctx context.Context, c *Coordinator, mc *Context, op Operation) error
	affected   func(c *Coordinator, mc *Context) []cache.QueryKey
	optimistic func(mc *Context, key cache.QueryKey, v cache.Value) (cache.Value, bool)
	commit     func(ctx context.Context, col store.Collection, mc *Context, op Operation) (entity.Entity, error)
}

func defaultHandlers() map[entity.Op]handler {
	return map[entity.Op]handler{
		entity.OpCreate: {
			types:      entity.Types(),
			prepare:    prepareCreate,
			affected:   ownerLists,
			optimistic: prependPlaceholder,
			commit:     commitCreate,
		},
		entity.OpUpdate: {
			types:      entity.Types(),
			prepare:    prepareUpdate,
			affected:   entityKeys,
			optimistic: mergeInto(applyPatch),
			commit:     commitUpdate,
		},
		entity.OpDelete: {
			types:      entity.Types(),
			prepare:    prepareExisting,
			affected:   entityKeys,
			optimistic: removeFromLists,
			commit:     commitDelete,
		},
		entity.OpProgress: {
			types:      []entity.Type{entity.TypeGoal},
			prepare:    prepareProgress,
			affected:   entityKeys,
			optimistic: mergeInto(applyProgress),
			commit:     commitProgress,
		},
		entity.OpUsage: {
			types:      []entity.Type{entity.TypeRoutine},
			prepare:    prepareExisting,
			affected:   entityKeys,
			optimistic: mergeInto(applyUsage),
			commit:     commitUsage,
		},
	}
}

func (h handler) supports(t entity.Type) bool {
	return slices.Contains(h.types, t)
}

// create

func prepareCreate(_ context.Context, _ *Coordinator, mc *Context, op Operation) error {
	record := op.(Create).Record

	placeholder := record.Clone()
	mc.TempID = uuid.New()
	placeholder.SetID(mc.TempID)
	placeholder.SetOwner(mc.Owner)
	placeholder.Stamp(mc.StartedAt)
	placeholder.ApplyDefaults(mc.StartedAt)

	mc.Optimistic = placeholder
	mc.Flags = templateFlag(placeholder)
	return nil
}

func ownerLists(c *Coordinator, mc *Context) []cache.QueryKey {
	var keys []cache.QueryKey
	for _, k := range c.cache.Keys(cache.MatchEntity(mc.EntityType).Owned(mc.Owner)) {
		if k.IsList() {
			keys = append(keys, k)
		}
	}
	return keys
}

// prependPlaceholder puts the placeholder at the head of every owner list
// whose query it satisfies, trimming limited lists back to their limit.
func prependPlaceholder(mc *Context, key cache.QueryKey, v cache.Value) (cache.Value, bool) {
	if !v.IsList || !belongsTo(key, mc.Optimistic, mc.StartedAt) {
		return v, false
	}
	v.List = append([]entity.Entity{mc.Optimistic.Clone()}, v.List...)
	if key.Limit > 0 && len(v.List) > key.Limit {
		v.List = v.List[:key.Limit]
	}
	return v, true
}

// belongsTo reports whether a new record would be returned by the query
// behind key.
func belongsTo(key cache.QueryKey, e entity.Entity, now time.Time) bool {
	if key.Category != "" && categoryOf(e) != key.Category {
		return false
	}

	switch key.Kind {
	case cache.KindTemplates:
		w, ok := e.(*entity.Workout)
		return ok && w.IsTemplate
	case cache.KindDateRange:
		at, ok := rangeTime(e)
		if !ok {
			return false
		}
		day := at.UTC().Format(cache.DayLayout)
		return day >= key.From && day <= key.To
	case cache.KindActive:
		g, ok := e.(*entity.Goal)
		return ok && g.Status == entity.GoalActive
	case cache.KindOverdue:
		g, ok := e.(*entity.Goal)
		return ok && g.Status == entity.GoalActive && g.TargetDate != nil && g.TargetDate.Before(now)
	case cache.KindPublic:
		r, ok := e.(*entity.Routine)
		return ok && r.IsPublic
	}
	return true
}

func categoryOf(e entity.Entity) string {
	switch r := e.(type) {
	case *entity.Workout:
		return r.Category
	case *entity.Goal:
		return r.Category
	case *entity.Routine:
		return r.Category
	}
	return ""
}

func rangeTime(e entity.Entity) (time.Time, bool) {
	switch r := e.(type) {
	case *entity.Workout:
		return r.PerformedAt, true
	case *entity.BMIEntry:
		return r.RecordedAt, true
	}
	return time.Time{}, false
}

func commitCreate(ctx context.Context, col store.Collection, mc *Context, op Operation) (entity.Entity, error) {
	record := op.(Create).Record.Clone()
	record.SetOwner(mc.Owner)
	return col.Create(ctx, record)
}

// update

func prepareUpdate(ctx context.Context, c *Coordinator, mc *Context, op Operation) error {
	mc.TargetID = op.(Update).ID
	current, err := c.lookup(ctx, mc)
	if err != nil {
		return err
	}

	next := current.Clone()
	if err := op.(Update).Patch.ApplyTo(next); err != nil {
		return syncerr.Validation("%v", err)
	}
	next.Touch(mc.StartedAt)

	mc.Current = current
	mc.Optimistic = next
	mc.Flags = templateFlag(current) | templateFlag(next)
	mc.patch = op.(Update).Patch
	return nil
}

func applyPatch(mc *Context, e entity.Entity) bool {
	if err := mc.patch.ApplyTo(e); err != nil {
		return false
	}
	e.Touch(mc.StartedAt)
	return true
}

func commitUpdate(ctx context.Context, col store.Collection, mc *Context, op Operation) (entity.Entity, error) {
	return col.Update(ctx, mc.TargetID, op.(Update).Patch)
}

// delete

func prepareExisting(ctx context.Context, c *Coordinator, mc *Context, op Operation) error {
	switch o := op.(type) {
	case Delete:
		mc.TargetID = o.ID
	case UsageIncrement:
		mc.TargetID = o.RoutineID
	}

	current, err := c.lookup(ctx, mc)
	if err != nil {
		return err
	}
	mc.Current = current
	mc.Flags = templateFlag(current)

	if routine, ok := current.Clone().(*entity.Routine); ok && mc.Kind == entity.OpUsage {
		applyUsage(mc, routine)
		mc.Optimistic = routine
	}
	return nil
}

func removeFromLists(mc *Context, _ cache.QueryKey, v cache.Value) (cache.Value, bool) {
	if !v.IsList {
		return v, false
	}
	kept := make([]entity.Entity, 0, len(v.List))
	for _, e := range v.List {
		if e.GetID() != mc.TargetID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(v.List) {
		return v, false
	}
	v.List = kept
	return v, true
}

func commitDelete(ctx context.Context, col store.Collection, mc *Context, _ Operation) (entity.Entity, error) {
	if err := col.Delete(ctx, mc.TargetID); err != nil {
		return nil, err
	}
	return mc.Current.Clone(), nil
}

// progress

func prepareProgress(ctx context.Context, c *Coordinator, mc *Context, op Operation) error {
	o := op.(ProgressUpdate)
	mc.TargetID = o.GoalID
	current, err := c.lookup(ctx, mc)
	if err != nil {
		return err
	}

	goal := current.(*entity.Goal)
	if err := goal.CheckProgress(o.NewValue); err != nil {
		return syncerr.Validation("goal %s: %v", goal.ID, err)
	}

	next := goal.Clone().(*entity.Goal)
	next.ApplyProgress(o.NewValue, mc.StartedAt)

	mc.Current = current
	mc.Optimistic = next
	mc.progress = o.NewValue
	return nil
}

func applyProgress(mc *Context, e entity.Entity) bool {
	goal, ok := e.(*entity.Goal)
	if !ok {
		return false
	}
	goal.ApplyProgress(mc.progress, mc.StartedAt)
	return true
}

func commitProgress(ctx context.Context, col store.Collection, mc *Context, _ Operation) (entity.Entity, error) {
	return col.Update(ctx, mc.TargetID, entity.ProgressPatch(mc.progress))
}

// usage

func applyUsage(mc *Context, e entity.Entity) bool {
	routine, ok := e.(*entity.Routine)
	if !ok {
		return false
	}
	routine.TimesUsed++
	routine.Touch(mc.StartedAt)
	return true
}

func commitUsage(ctx context.Context, col store.Collection, mc *Context, _ Operation) (entity.Entity, error) {
	return col.Update(ctx, mc.TargetID, entity.IncrementUsage())
}

// shared

func entityKeys(c *Coordinator, mc *Context) []cache.QueryKey {
	return c.cache.Keys(cache.MatchEntity(mc.EntityType))
}

// mergeInto applies fn to every cached copy of the target record.
func mergeInto(fn func(mc *Context, e entity.Entity) bool) func(*Context, cache.QueryKey, cache.Value) (cache.Value, bool) {
	return func(mc *Context, _ cache.QueryKey, v cache.Value) (cache.Value, bool) {
		changed := false
		if v.IsList {
			for _, e := range v.List {
				if e.GetID() == mc.TargetID && fn(mc, e) {
					changed = true
				}
			}
			return v, changed
		}
		if v.Single != nil && v.Single.GetID() == mc.TargetID {
			changed = fn(mc, v.Single)
		}
		return v, changed
	}
}

func templateFlag(e entity.Entity) invalidation.Flag {
	if w, ok := e.(*entity.Workout); ok && w.IsTemplate {
		return invalidation.FlagTemplate
	}
	return 0
}
