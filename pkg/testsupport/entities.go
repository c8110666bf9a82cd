package testsupport

import (
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/store/memstore"
	"github.com/google/uuid"
)

// Dataset is the layout of entity fixture files: one array per entity
// type, keyed by the type name.
type Dataset struct {
	Workouts []*entity.Workout  `json:"workouts"`
	Goals    []*entity.Goal     `json:"goals"`
	Routines []*entity.Routine  `json:"routines"`
	BMI      []*entity.BMIEntry `json:"bmi_entries"`
}

// ByType groups the records by entity type.
func (d *Dataset) ByType() map[entity.Type][]entity.Entity {
	out := map[entity.Type][]entity.Entity{}
	for _, w := range d.Workouts {
		out[entity.TypeWorkout] = append(out[entity.TypeWorkout], w)
	}
	for _, g := range d.Goals {
		out[entity.TypeGoal] = append(out[entity.TypeGoal], g)
	}
	for _, r := range d.Routines {
		out[entity.TypeRoutine] = append(out[entity.TypeRoutine], r)
	}
	for _, b := range d.BMI {
		out[entity.TypeBMI] = append(out[entity.TypeBMI], b)
	}
	return out
}

// LoadDataset decodes an entity fixture file. Unknown fields fail the
// test, and records without an id get a fresh one.
func LoadDataset(t *testing.T, path string) *Dataset {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open dataset %s: %v", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		t.Fatalf("failed to decode dataset %s: %v", path, err)
	}

	for _, records := range ds.ByType() {
		for _, r := range records {
			if r.GetID() == uuid.Nil {
				r.SetID(uuid.New())
			}
		}
	}
	return &ds
}

// SeedCollections stores the dataset into in-memory collections as is.
func SeedCollections(t *testing.T, cols map[entity.Type]*memstore.Collection, ds *Dataset) {
	t.Helper()

	for typ, records := range ds.ByType() {
		col, ok := cols[typ]
		if !ok {
			t.Fatalf("no collection for %s", typ)
		}
		col.Seed(records...)
	}
}

// Workout builds an owned workout performed at at.
func Workout(owner, title string, at time.Time) *entity.Workout {
	w := &entity.Workout{Title: title, PerformedAt: at}
	w.ID = uuid.New()
	w.UserID = owner
	w.Stamp(at)
	return w
}

// Goal builds an active owned goal.
func Goal(owner, title string, target float64, created time.Time) *entity.Goal {
	g := &entity.Goal{Title: title, TargetValue: target, Status: entity.GoalActive}
	g.ID = uuid.New()
	g.UserID = owner
	g.Stamp(created)
	return g
}

// Routine builds an owned routine.
func Routine(owner, name string, public bool, created time.Time) *entity.Routine {
	r := &entity.Routine{Name: name, IsPublic: public}
	r.ID = uuid.New()
	r.UserID = owner
	r.Stamp(created)
	return r
}

// BMIEntry builds an owned measurement recorded at at. BMI is left for
// the store to derive.
func BMIEntry(owner string, heightCM, weightKG float64, at time.Time) *entity.BMIEntry {
	b := &entity.BMIEntry{HeightCM: heightCM, WeightKG: weightKG, RecordedAt: at}
	b.ID = uuid.New()
	b.UserID = owner
	b.Stamp(at)
	return b
}
