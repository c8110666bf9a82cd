package entity

import (
	"bytes"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goccy/go-json"
)

// Patch is a partial update restricted to the fields an entity allows to
// change. Nil fields are left untouched.
type Patch interface {
	EntityType() Type
	// ApplyTo shallow-merges the set fields into e. It fails when e is of
	// another entity type.
	ApplyTo(e Entity) error
	Validate() error
}

// DecodePatch decodes a JSON partial update for t. Fields outside the
// entity's allowed update set are rejected.
func DecodePatch(t Type, data []byte) (Patch, error) {
	var p Patch
	switch t {
	case TypeWorkout:
		p = &WorkoutPatch{}
	case TypeGoal:
		p = &GoalPatch{}
	case TypeRoutine:
		p = &RoutinePatch{}
	case TypeBMI:
		p = &BMIPatch{}
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode %s patch: %w", t, err)
	}
	return p, nil
}

func mismatch(want Type, got Entity) error {
	return fmt.Errorf("%s patch cannot be applied to %s", want, got.EntityType())
}

type WorkoutPatch struct {
	Title           *string    `json:"title,omitempty"`
	Category        *string    `json:"category,omitempty"`
	PerformedAt     *time.Time `json:"performed_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CaloriesBurned  *int       `json:"calories_burned,omitempty"`
	IsTemplate      *bool      `json:"is_template,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

func (p *WorkoutPatch) EntityType() Type { return TypeWorkout }

func (p *WorkoutPatch) ApplyTo(e Entity) error {
	w, ok := e.(*Workout)
	if !ok {
		return mismatch(TypeWorkout, e)
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Category != nil {
		w.Category = *p.Category
	}
	if p.PerformedAt != nil {
		w.PerformedAt = *p.PerformedAt
	}
	if p.DurationMinutes != nil {
		w.DurationMinutes = *p.DurationMinutes
	}
	if p.CaloriesBurned != nil {
		w.CaloriesBurned = *p.CaloriesBurned
	}
	if p.IsTemplate != nil {
		w.IsTemplate = *p.IsTemplate
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	return nil
}

func (p *WorkoutPatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&p.DurationMinutes, validation.Min(0)),
		validation.Field(&p.CaloriesBurned, validation.Min(0)),
	)
}

// GoalPatch holds the goal fields a plain update may set. Progress and
// completion are derived and only change through a progress update.
type GoalPatch struct {
	Title       *string     `json:"title,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Unit        *string     `json:"unit,omitempty"`
	TargetValue *float64    `json:"target_value,omitempty"`
	Status      *GoalStatus `json:"status,omitempty"`
	TargetDate  *time.Time  `json:"target_date,omitempty"`
}

func (p *GoalPatch) EntityType() Type { return TypeGoal }

// ApplyTo merges the set fields. A new target recomputes the progress
// percentage; completed_at is stamped by Goal.Touch.
func (p *GoalPatch) ApplyTo(e Entity) error {
	g, ok := e.(*Goal)
	if !ok {
		return mismatch(TypeGoal, e)
	}
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.Unit != nil {
		g.Unit = *p.Unit
	}
	if p.TargetValue != nil {
		g.TargetValue = *p.TargetValue
		g.ProgressPercentage = ProgressPercentage(g.CurrentValue, g.TargetValue)
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.TargetDate != nil {
		g.TargetDate = cloneTime(p.TargetDate)
	}
	return nil
}

func (p *GoalPatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&p.TargetValue, validation.NilOrNotEmpty, validation.Min(0.0)),
		validation.Field(&p.Status, validation.In(GoalActive, GoalPaused, GoalCompleted, GoalCancelled)),
	)
}

type RoutinePatch struct {
	Name             *string `json:"name,omitempty"`
	Category         *string `json:"category,omitempty"`
	Description      *string `json:"description,omitempty"`
	EstimatedMinutes *int    `json:"estimated_minutes,omitempty"`
	IsPublic         *bool   `json:"is_public,omitempty"`
}

func (p *RoutinePatch) EntityType() Type { return TypeRoutine }

func (p *RoutinePatch) ApplyTo(e Entity) error {
	r, ok := e.(*Routine)
	if !ok {
		return mismatch(TypeRoutine, e)
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.EstimatedMinutes != nil {
		r.EstimatedMinutes = *p.EstimatedMinutes
	}
	if p.IsPublic != nil {
		r.IsPublic = *p.IsPublic
	}
	return nil
}

func (p *RoutinePatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&p.EstimatedMinutes, validation.Min(0)),
	)
}

type BMIPatch struct {
	HeightCM   *float64   `json:"height_cm,omitempty"`
	WeightKG   *float64   `json:"weight_kg,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

func (p *BMIPatch) EntityType() Type { return TypeBMI }

func (p *BMIPatch) ApplyTo(e Entity) error {
	b, ok := e.(*BMIEntry)
	if !ok {
		return mismatch(TypeBMI, e)
	}
	if p.HeightCM != nil {
		b.HeightCM = *p.HeightCM
	}
	if p.WeightKG != nil {
		b.WeightKG = *p.WeightKG
	}
	if p.RecordedAt != nil {
		b.RecordedAt = *p.RecordedAt
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	return nil
}

func (p *BMIPatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.HeightCM, validation.NilOrNotEmpty, validation.Min(0.0)),
		validation.Field(&p.WeightKG, validation.NilOrNotEmpty, validation.Min(0.0)),
	)
}
