package entity

import (
	"testing"
	"time"
)

var now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		value, target float64
		want          int
	}{
		{0, 100, 0},
		{50, 200, 25},
		{1, 3, 33},
		{2, 3, 67},
		{250, 200, 100},
		{10, 0, 0},
		{-5, 10, 0},
	}
	for _, tt := range tests {
		if got := ProgressPercentage(tt.value, tt.target); got != tt.want {
			t.Errorf("ProgressPercentage(%v, %v): expected %d, got %d", tt.value, tt.target, tt.want, got)
		}
	}
}

func TestGoal_CheckProgress(t *testing.T) {
	g := &Goal{TargetValue: 100, CurrentValue: 40}

	if err := g.CheckProgress(40); err != nil {
		t.Errorf("expected equal value to be accepted, got %v", err)
	}
	if err := g.CheckProgress(-1); err == nil {
		t.Error("expected negative value to be rejected")
	}
	if err := g.CheckProgress(39); err == nil {
		t.Error("expected decreasing value to be rejected")
	}
	if err := (&Goal{}).CheckProgress(1); err == nil {
		t.Error("expected goal without target to be rejected")
	}
}

func TestGoal_ApplyProgressCompletesOnce(t *testing.T) {
	g := &Goal{TargetValue: 10, Status: GoalActive}

	g.ApplyProgress(5, now)
	if g.Status != GoalActive || g.CompletedAt != nil || g.ProgressPercentage != 50 {
		t.Fatalf("expected active goal at 50%%, got %s at %d%%", g.Status, g.ProgressPercentage)
	}

	g.ApplyProgress(10, now)
	if g.Status != GoalCompleted || g.CompletedAt == nil || !g.CompletedAt.Equal(now) {
		t.Fatalf("expected completion at %v, got %s %v", now, g.Status, g.CompletedAt)
	}

	later := now.Add(time.Hour)
	g.ApplyProgress(12, later)
	if !g.CompletedAt.Equal(now) {
		t.Errorf("expected completed_at to stay %v, got %v", now, g.CompletedAt)
	}
	if !g.UpdatedAt.Equal(later) {
		t.Errorf("expected updated_at %v, got %v", later, g.UpdatedAt)
	}

}

func TestProgressPatch(t *testing.T) {
	g := &Goal{TargetValue: 200, CurrentValue: 150, ProgressPercentage: 75, Status: GoalActive}

	if err := ProgressPatch(100).ApplyTo(g); err == nil {
		t.Error("expected a decreasing value to be rejected against the stored copy")
	}
	if g.CurrentValue != 150 {
		t.Errorf("expected rejected patch to leave the goal alone, got %v", g.CurrentValue)
	}

	if err := ProgressPatch(200).ApplyTo(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ProgressPercentage != 100 || g.Status != GoalCompleted || g.CompletedAt != nil {
		t.Errorf("expected completed at 100%% awaiting its stamp, got %s %d%% %v", g.Status, g.ProgressPercentage, g.CompletedAt)
	}
	g.Touch(now)
	if g.CompletedAt == nil || !g.CompletedAt.Equal(now) {
		t.Errorf("expected touch to stamp completed_at %v, got %v", now, g.CompletedAt)
	}

	if err := ProgressPatch(-1).Validate(); err == nil {
		t.Error("expected negative progress to be invalid")
	}
	if err := ProgressPatch(5).ApplyTo(&Routine{}); err == nil {
		t.Error("expected error applying a progress patch to a routine")
	}
}

func TestApplyDefaults(t *testing.T) {
	g := &Goal{ProgressPercentage: 80}
	g.ApplyDefaults(now)
	if g.Status != GoalActive || g.ProgressPercentage != 0 {
		t.Errorf("expected active goal at 0%%, got %s at %d%%", g.Status, g.ProgressPercentage)
	}

	r := &Routine{TimesUsed: 7}
	r.ApplyDefaults(now)
	if r.TimesUsed != 0 {
		t.Errorf("expected times_used 0, got %d", r.TimesUsed)
	}

	w := &Workout{}
	w.ApplyDefaults(now)
	if !w.PerformedAt.Equal(now) {
		t.Errorf("expected performed_at to default to now, got %v", w.PerformedAt)
	}
}

func TestClone_IsDeep(t *testing.T) {
	target := now
	g := &Goal{Title: "a", TargetDate: &target}
	c := g.Clone().(*Goal)

	*c.TargetDate = now.Add(time.Hour)
	c.Title = "b"
	if !g.TargetDate.Equal(now) || g.Title != "a" {
		t.Error("expected clone to be independent of the original")
	}
}

func TestNew(t *testing.T) {
	for _, typ := range Types() {
		e := New(typ)
		if e == nil || e.EntityType() != typ {
			t.Errorf("expected empty %s record, got %v", typ, e)
		}
	}
	if New("meals") != nil {
		t.Error("expected nil for unknown type")
	}
	if Type("meals").Valid() {
		t.Error("expected unknown type to be invalid")
	}
}

func TestDecodePatch(t *testing.T) {
	p, err := DecodePatch(TypeWorkout, []byte(`{"title":"Intervals","is_template":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wp := p.(*WorkoutPatch)
	if *wp.Title != "Intervals" || !*wp.IsTemplate || wp.Category != nil {
		t.Errorf("unexpected patch %+v", wp)
	}

	tests := []struct {
		name string
		t    Type
		data string
	}{
		{"field outside the allowed set", TypeGoal, `{"user_id":"u2"}`},
		{"server derived field", TypeBMI, `{"bmi":21.5}`},
		{"derived goal progress", TypeGoal, `{"current_value":10,"progress_percentage":90}`},
		{"goal completion stamp", TypeGoal, `{"completed_at":"2024-05-01T00:00:00Z"}`},
		{"usage counter", TypeRoutine, `{"times_used":9}`},
		{"unknown type", "meals", `{}`},
		{"malformed", TypeRoutine, `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePatch(tt.t, []byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPatch_ApplyTo(t *testing.T) {
	if err := (&WorkoutPatch{}).ApplyTo(&Goal{}); err == nil {
		t.Error("expected error applying a workout patch to a goal")
	}

	r := &Routine{TimesUsed: 5}
	if err := IncrementUsage().ApplyTo(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TimesUsed != 6 {
		t.Errorf("expected the increment relative to the stored count, got %d", r.TimesUsed)
	}
	if err := IncrementUsage().ApplyTo(&Goal{}); err == nil {
		t.Error("expected error applying a usage increment to a goal")
	}

	g := &Goal{TargetValue: 200, CurrentValue: 150, ProgressPercentage: 75, Status: GoalActive}
	target := 300.0
	_ = (&GoalPatch{TargetValue: &target}).ApplyTo(g)
	if g.ProgressPercentage != 50 || g.CurrentValue != 150 {
		t.Errorf("expected a new target to recompute 50%%, got %d%% at %v", g.ProgressPercentage, g.CurrentValue)
	}

	first, second := now, now.Add(time.Hour)
	done := GoalCompleted
	_ = (&GoalPatch{Status: &done}).ApplyTo(g)
	g.Touch(first)
	g.Touch(second)
	if g.CompletedAt == nil || !g.CompletedAt.Equal(first) {
		t.Errorf("expected completed_at to be set once, got %v", g.CompletedAt)
	}
}

func TestPatch_Validate(t *testing.T) {
	empty := ""
	negative := -1.0
	bogus := GoalStatus("archived")

	tests := []struct {
		name  string
		patch Patch
	}{
		{"empty title", &WorkoutPatch{Title: &empty}},
		{"negative target", &GoalPatch{TargetValue: &negative}},
		{"unknown status", &GoalPatch{Status: &bogus}},
		{"negative weight", &BMIPatch{WeightKG: &negative}},
	}
	for _, tt := range tests {
		if err := tt.patch.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
	if err := (&GoalPatch{}).Validate(); err != nil {
		t.Errorf("expected empty patch to be valid, got %v", err)
	}
}
