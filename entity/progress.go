package entity

import (
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ProgressPercentage returns round(value/target*100) clamped to [0, 100].
func ProgressPercentage(value, target float64) int {
	if target <= 0 {
		return 0
	}
	pct := int(math.Round(value / target * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// CheckProgress reports why newValue cannot be recorded against g, or nil.
func (g *Goal) CheckProgress(newValue float64) error {
	if newValue < 0 {
		return fmt.Errorf("progress value %v is negative", newValue)
	}
	if newValue < g.CurrentValue {
		return fmt.Errorf("progress value %v is below current value %v", newValue, g.CurrentValue)
	}
	if g.TargetValue <= 0 {
		return fmt.Errorf("goal has no positive target value")
	}
	return nil
}

// ApplyProgress records newValue and recomputes the derived fields.
// Reaching 100% moves any non-completed goal to completed; CompletedAt is
// only ever set when it is still empty.
func (g *Goal) ApplyProgress(newValue float64, now time.Time) {
	g.recordProgress(newValue)
	g.Touch(now)
}

func (g *Goal) recordProgress(newValue float64) {
	g.CurrentValue = newValue
	g.ProgressPercentage = ProgressPercentage(newValue, g.TargetValue)
	if g.ProgressPercentage >= 100 && g.Status != GoalCompleted {
		g.Status = GoalCompleted
	}
}

// Touch refreshes updated_at and stamps completed_at the first time the
// goal is seen completed.
func (g *Goal) Touch(now time.Time) {
	g.Base.Touch(now)
	if g.Status == GoalCompleted && g.CompletedAt == nil {
		at := now
		g.CompletedAt = &at
	}
}

// ProgressPatch is the patch sent to the remote store for a progress
// update. The store re-checks the value against its own copy.
func ProgressPatch(newValue float64) Patch {
	return &progressPatch{value: newValue}
}

type progressPatch struct {
	value float64
}

func (p *progressPatch) EntityType() Type { return TypeGoal }

func (p *progressPatch) ApplyTo(e Entity) error {
	g, ok := e.(*Goal)
	if !ok {
		return mismatch(TypeGoal, e)
	}
	if err := g.CheckProgress(p.value); err != nil {
		return err
	}
	g.recordProgress(p.value)
	return nil
}

func (p *progressPatch) Validate() error {
	return validation.Validate(p.value, validation.Min(0.0))
}

// IncrementUsage returns the patch sent to the remote store when a routine is
// used. It increments the stored count rather than overwriting it.
func IncrementUsage() Patch {
	return usagePatch{}
}

type usagePatch struct{}

func (usagePatch) EntityType() Type { return TypeRoutine }

func (usagePatch) ApplyTo(e Entity) error {
	r, ok := e.(*Routine)
	if !ok {
		return mismatch(TypeRoutine, e)
	}
	r.TimesUsed++
	return nil
}

func (usagePatch) Validate() error { return nil }
