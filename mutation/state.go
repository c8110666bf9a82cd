package mutation

import (
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/invalidation"
	"github.com/google/uuid"
)

// State is a step of the mutation lifecycle:
//
//	Idle -> Applying -> Calling -> Succeeded -> Idle
//	                           \-> Failed    -> Idle
type State int

const (
	StateIdle State = iota
	StateApplying
	StateCalling
	StateSucceeded
	StateFailed
)

var transitions = map[State][]State{
	StateIdle:      {StateApplying},
	StateApplying:  {StateCalling},
	StateCalling:   {StateSucceeded, StateFailed},
	StateSucceeded: {StateIdle},
	StateFailed:    {StateIdle},
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplying:
		return "applying"
	case StateCalling:
		return "calling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Context is the working state of one mutation. It is created when the
// mutation starts and dropped once it settles back to Idle.
type Context struct {
	EntityType entity.Type
	Kind       entity.Op
	Owner      string
	// TargetID is the record being changed; nil for creates.
	TargetID uuid.UUID
	// TempID is the placeholder ID of a create.
	TempID uuid.UUID
	// Current is the record as known before the mutation.
	Current entity.Entity
	// Optimistic is the provisional record written into the cache.
	Optimistic   entity.Entity
	AffectedKeys []cache.QueryKey
	Snapshot     cache.Snapshot
	Flags        invalidation.Flag
	State        State
	StartedAt    time.Time

	patch    entity.Patch
	progress float64
}

func (mc *Context) advance(to State) error {
	if !slices.Contains(transitions[mc.State], to) {
		return fmt.Errorf("mutation: illegal transition %s -> %s", mc.State, to)
	}
	mc.State = to
	return nil
}
