package entity

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// Workout is a logged training session. Templates are workouts flagged
// for reuse.
type Workout struct {
	bun.BaseModel `bun:"table:workouts,alias:w" json:"-"`
	Base

	Title           string    `bun:"title,notnull" json:"title"`
	Category        string    `bun:"category" json:"category"`
	PerformedAt     time.Time `bun:"performed_at,notnull" json:"performed_at"`
	DurationMinutes int       `bun:"duration_minutes" json:"duration_minutes"`
	CaloriesBurned  int       `bun:"calories_burned" json:"calories_burned"`
	IsTemplate      bool      `bun:"is_template" json:"is_template"`
	Notes           string    `bun:"notes" json:"notes,omitempty"`
}

func (w *Workout) EntityType() Type { return TypeWorkout }

func (w *Workout) ApplyDefaults(now time.Time) {
	if w.PerformedAt.IsZero() {
		w.PerformedAt = now
	}
}

func (w *Workout) Clone() Entity {
	c := *w
	return &c
}

func (w *Workout) Validate() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.Title, validation.Required, validation.Length(1, 120)),
		validation.Field(&w.Category, validation.Length(0, 60)),
		validation.Field(&w.DurationMinutes, validation.Min(0)),
		validation.Field(&w.CaloriesBurned, validation.Min(0)),
	)
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

// Goal tracks progress of CurrentValue towards TargetValue.
// ProgressPercentage is derived; CompletedAt is set once, on completion.
type Goal struct {
	bun.BaseModel `bun:"table:goals,alias:g" json:"-"`
	Base

	Title              string     `bun:"title,notnull" json:"title"`
	Category           string     `bun:"category" json:"category"`
	Unit               string     `bun:"unit" json:"unit"`
	TargetValue        float64    `bun:"target_value,notnull" json:"target_value"`
	CurrentValue       float64    `bun:"current_value" json:"current_value"`
	ProgressPercentage int        `bun:"progress_percentage" json:"progress_percentage"`
	Status             GoalStatus `bun:"status,notnull" json:"status"`
	TargetDate         *time.Time `bun:"target_date,nullzero" json:"target_date,omitempty"`
	CompletedAt        *time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
}

func (g *Goal) EntityType() Type { return TypeGoal }

func (g *Goal) ApplyDefaults(now time.Time) {
	if g.Status == "" {
		g.Status = GoalActive
	}
	g.ProgressPercentage = 0
}

func (g *Goal) Clone() Entity {
	c := *g
	c.TargetDate = cloneTime(g.TargetDate)
	c.CompletedAt = cloneTime(g.CompletedAt)
	return &c
}

func (g *Goal) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.Title, validation.Required, validation.Length(1, 120)),
		validation.Field(&g.TargetValue, validation.Required, validation.Min(0.0)),
		validation.Field(&g.CurrentValue, validation.Min(0.0)),
		validation.Field(&g.ProgressPercentage, validation.Min(0), validation.Max(100)),
		validation.Field(&g.Status, validation.In(GoalActive, GoalPaused, GoalCompleted, GoalCancelled)),
	)
}

// Routine is a reusable workout plan. TimesUsed only grows.
type Routine struct {
	bun.BaseModel `bun:"table:routines,alias:r" json:"-"`
	Base

	Name             string `bun:"name,notnull" json:"name"`
	Category         string `bun:"category" json:"category"`
	Description      string `bun:"description" json:"description,omitempty"`
	EstimatedMinutes int    `bun:"estimated_minutes" json:"estimated_minutes"`
	IsPublic         bool   `bun:"is_public" json:"is_public"`
	TimesUsed        int    `bun:"times_used" json:"times_used"`
}

func (r *Routine) EntityType() Type { return TypeRoutine }

func (r *Routine) ApplyDefaults(now time.Time) {
	r.TimesUsed = 0
}

func (r *Routine) Clone() Entity {
	c := *r
	return &c
}

func (r *Routine) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.EstimatedMinutes, validation.Min(0)),
		validation.Field(&r.TimesUsed, validation.Min(0)),
	)
}

// BMIEntry is one body-metric measurement. BMI and Category are
// computed by the remote store.
type BMIEntry struct {
	bun.BaseModel `bun:"table:bmi_entries,alias:b" json:"-"`
	Base

	HeightCM   float64   `bun:"height_cm,notnull" json:"height_cm"`
	WeightKG   float64   `bun:"weight_kg,notnull" json:"weight_kg"`
	BMI        float64   `bun:"bmi" json:"bmi"`
	Category   string    `bun:"category" json:"category"`
	RecordedAt time.Time `bun:"recorded_at,notnull" json:"recorded_at"`
	Notes      string    `bun:"notes" json:"notes,omitempty"`
}

func (b *BMIEntry) EntityType() Type { return TypeBMI }

func (b *BMIEntry) ApplyDefaults(now time.Time) {
	if b.RecordedAt.IsZero() {
		b.RecordedAt = now
	}
}

func (b *BMIEntry) Clone() Entity {
	c := *b
	return &c
}

func (b *BMIEntry) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.HeightCM, validation.Required, validation.Min(0.0)),
		validation.Field(&b.WeightKG, validation.Required, validation.Min(0.0)),
	)
}
