package mutation

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

// Operation is one mutation request. Each variant carries its own
// payload and is dispatched to the handler registered for its Kind.
type Operation interface {
	Kind() entity.Op
	Entity() entity.Type
	Validate() error
}

// Create stores a new record. The record's ID and timestamps are
// assigned by the store; the owner comes from the context.
type Create struct {
	Record entity.Entity
}

// Update applies an explicit patch to the record with ID.
type Update struct {
	ID    uuid.UUID
	Patch entity.Patch
}

// Delete removes the record of Type with ID.
type Delete struct {
	Type entity.Type
	ID   uuid.UUID
}

// ProgressUpdate records a new current value for a goal.
type ProgressUpdate struct {
	GoalID   uuid.UUID
	NewValue float64
}

// UsageIncrement counts one more use of a routine.
type UsageIncrement struct {
	RoutineID uuid.UUID
}

var (
	_ Operation = Create{}
	_ Operation = Update{}
	_ Operation = Delete{}
	_ Operation = ProgressUpdate{}
	_ Operation = UsageIncrement{}
)

var requiredID = validation.By(func(value any) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
})

func (Create) Kind() entity.Op { return entity.OpCreate }

func (o Create) Entity() entity.Type {
	if o.Record == nil {
		return ""
	}
	return o.Record.EntityType()
}

func (o Create) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Record, validation.Required),
	)
}

func (Update) Kind() entity.Op { return entity.OpUpdate }

func (o Update) Entity() entity.Type {
	if o.Patch == nil {
		return ""
	}
	return o.Patch.EntityType()
}

func (o Update) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.ID, requiredID),
		validation.Field(&o.Patch, validation.Required),
	)
}

func (Delete) Kind() entity.Op { return entity.OpDelete }

func (o Delete) Entity() entity.Type { return o.Type }

func (o Delete) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Type, validation.Required, validation.In(
			entity.TypeWorkout, entity.TypeGoal, entity.TypeRoutine, entity.TypeBMI)),
		validation.Field(&o.ID, requiredID),
	)
}

func (ProgressUpdate) Kind() entity.Op { return entity.OpProgress }

func (ProgressUpdate) Entity() entity.Type { return entity.TypeGoal }

func (o ProgressUpdate) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.GoalID, requiredID),
		validation.Field(&o.NewValue, validation.Min(0.0)),
	)
}

func (UsageIncrement) Kind() entity.Op { return entity.OpUsage }

func (UsageIncrement) Entity() entity.Type { return entity.TypeRoutine }

func (o UsageIncrement) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.RoutineID, requiredID),
	)
}
