package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type names an entity collection. The value doubles as table name and
// as the first segment of every cache key for that collection.
type Type string

const (
	TypeWorkout Type = "workouts"
	TypeGoal    Type = "goals"
	TypeRoutine Type = "routines"
	TypeBMI     Type = "bmi_entries"
)

// Types lists every supported entity type.
func Types() []Type {
	return []Type{TypeWorkout, TypeGoal, TypeRoutine, TypeBMI}
}

// Valid reports whether t is a supported entity type.
func (t Type) Valid() bool {
	switch t {
	case TypeWorkout, TypeGoal, TypeRoutine, TypeBMI:
		return true
	}
	return false
}

// Op is the kind of a mutation.
type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpProgress Op = "progress"
	OpUsage    Op = "usage"
)

// Entity is the contract shared by every record held in the cache and
// exchanged with the remote store. Implementations are pointer types.
type Entity interface {
	EntityType() Type
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	OwnerID() string
	SetOwner(owner string)
	// Stamp sets created_at and updated_at to now.
	Stamp(now time.Time)
	// Touch sets updated_at to now.
	Touch(now time.Time)
	// ApplyDefaults fills creation defaults for fields left empty.
	ApplyDefaults(now time.Time)
	// Clone returns a structural deep copy.
	Clone() Entity
	Validate() error
}

// Base carries the fields every entity has.
type Base struct {
	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (b *Base) GetID() uuid.UUID      { return b.ID }
func (b *Base) SetID(id uuid.UUID)    { b.ID = id }
func (b *Base) OwnerID() string       { return b.UserID }
func (b *Base) SetOwner(owner string) { b.UserID = owner }

func (b *Base) Stamp(now time.Time) {
	b.CreatedAt = now
	b.UpdatedAt = now
}

func (b *Base) Touch(now time.Time) { b.UpdatedAt = now }

// New returns an empty record of the given type, or nil for unknown types.
func New(t Type) Entity {
	switch t {
	case TypeWorkout:
		return &Workout{}
	case TypeGoal:
		return &Goal{}
	case TypeRoutine:
		return &Routine{}
	case TypeBMI:
		return &BMIEntry{}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
