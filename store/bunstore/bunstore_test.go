package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/store"
	"github.com/goliatone/go-fitsync/syncerr"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// sqlRepository is a minimal bun-backed Repository used to run the
// collection against a real sqlite database.
type sqlRepository[T entity.Entity] struct {
	db *bun.DB
	t  entity.Type
}

func (r *sqlRepository[T]) GetByID(ctx context.Context, id string, _ ...repository.SelectCriteria) (T, error) {
	rec := entity.New(r.t).(T)
	err := r.db.NewSelect().Model(rec).Where("? = ?", bun.Ident("id"), id).Scan(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (r *sqlRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	var rows []T
	q := r.db.NewSelect().Model(&rows)
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, 0, err
	}
	return rows, len(rows), nil
}

func (r *sqlRepository[T]) Create(ctx context.Context, record T, _ ...repository.InsertCriteria) (T, error) {
	_, err := r.db.NewInsert().Model(record).Exec(ctx)
	return record, err
}

func (r *sqlRepository[T]) Update(ctx context.Context, record T, _ ...repository.UpdateCriteria) (T, error) {
	_, err := r.db.NewUpdate().Model(record).WherePK().Exec(ctx)
	return record, err
}

func (r *sqlRepository[T]) Delete(ctx context.Context, record T) error {
	_, err := r.db.NewDelete().Model(record).WherePK().Exec(ctx)
	return err
}

var now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if err := CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func newCollection[T entity.Entity](t *testing.T, db *bun.DB, clock clockwork.Clock, opts ...Option) *Collection[T] {
	t.Helper()
	var zero T
	repo := &sqlRepository[T]{db: db, t: recordType(zero)}
	col, err := New[T](repo, append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return col
}

func TestNew_ResolvesEntityType(t *testing.T) {
	db := newDB(t)
	clock := clockwork.NewFakeClockAt(now)

	tests := []struct {
		got  entity.Type
		want entity.Type
	}{
		{newCollection[*entity.Workout](t, db, clock).Type(), entity.TypeWorkout},
		{newCollection[*entity.Goal](t, db, clock).Type(), entity.TypeGoal},
		{newCollection[*entity.Routine](t, db, clock).Type(), entity.TypeRoutine},
		{newCollection[*entity.BMIEntry](t, db, clock).Type(), entity.TypeBMI},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, tt.got)
		}
	}

	if _, err := New[*entity.Goal](nil); err == nil {
		t.Error("expected error for nil repository")
	}
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(now)
	col := newCollection[*entity.Goal](t, newDB(t), clock)

	created, err := col.Create(ctx, &entity.Goal{Base: entity.Base{UserID: "u1"}, Title: "Run 100km", TargetValue: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	goal := created.(*entity.Goal)
	if goal.ID == uuid.Nil {
		t.Error("expected an assigned id")
	}
	if goal.Status != entity.GoalActive || !goal.CreatedAt.Equal(now) {
		t.Errorf("expected defaults and timestamps, got status %s created %v", goal.Status, goal.CreatedAt)
	}

	clock.Advance(time.Minute)
	updated, err := col.Update(ctx, goal.ID, entity.ProgressPatch(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g := updated.(*entity.Goal); g.CurrentValue != 40 || g.ProgressPercentage != 40 {
		t.Errorf("expected 40 at 40%%, got %v at %d%%", g.CurrentValue, g.ProgressPercentage)
	}
	if _, err := col.Update(ctx, goal.ID, entity.ProgressPatch(10)); err == nil {
		t.Error("expected the stored copy to reject decreasing progress")
	}

	got, err := col.GetByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := got.(*entity.Goal)
	if stored.CurrentValue != 40 || !stored.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("expected persisted update, got value %v updated %v", stored.CurrentValue, stored.UpdatedAt)
	}
	if stored.UserID != "u1" {
		t.Errorf("expected owner u1, got %q", stored.UserID)
	}

	if err := col.Delete(ctx, goal.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	missing, err := col.GetByID(ctx, goal.ID)
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) after delete, got %v (%v)", missing, err)
	}
	if _, err := col.Update(ctx, goal.ID, entity.ProgressPatch(50)); !syncerr.IsNotFound(err) {
		t.Errorf("expected not found on update, got %v", err)
	}
	if err := col.Delete(ctx, goal.ID); !syncerr.IsNotFound(err) {
		t.Errorf("expected not found on delete, got %v", err)
	}
}

func TestCollection_CreateRejectsOtherTypes(t *testing.T) {
	col := newCollection[*entity.Workout](t, newDB(t), clockwork.NewFakeClockAt(now))
	if _, err := col.Create(context.Background(), &entity.Routine{Name: "x"}); !syncerr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCollection_Derive(t *testing.T) {
	ctx := context.Background()
	derive := func(e entity.Entity) {
		b := e.(*entity.BMIEntry)
		m := b.HeightCM / 100
		b.BMI = b.WeightKG / (m * m)
		b.Category = "normal"
	}
	col := newCollection[*entity.BMIEntry](t, newDB(t), clockwork.NewFakeClockAt(now), WithDerive(derive))

	created, err := col.Create(ctx, &entity.BMIEntry{Base: entity.Base{UserID: "u1"}, HeightCM: 200, WeightKG: 80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bmi := created.(*entity.BMIEntry).BMI; bmi != 20 {
		t.Errorf("expected bmi 20, got %v", bmi)
	}

	weight := 100.0
	updated, err := col.Update(ctx, created.GetID(), &entity.BMIPatch{WeightKG: &weight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bmi := updated.(*entity.BMIEntry).BMI; bmi != 25 {
		t.Errorf("expected bmi 25 after update, got %v", bmi)
	}
}

func TestCollection_List(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(now)
	db := newDB(t)
	workouts := newCollection[*entity.Workout](t, db, clock)
	goals := newCollection[*entity.Goal](t, db, clock)

	seed := []struct {
		owner    string
		title    string
		category string
		at       time.Time
		template bool
	}{
		{"u1", "a", "cardio", now.Add(-72 * time.Hour), false},
		{"u1", "b", "strength", now.Add(-48 * time.Hour), true},
		{"u1", "c", "cardio", now.Add(-24 * time.Hour), false},
		{"u2", "d", "cardio", now, false},
	}
	for _, s := range seed {
		w := &entity.Workout{Base: entity.Base{UserID: s.owner}, Title: s.title, Category: s.category, PerformedAt: s.at, IsTemplate: s.template}
		if _, err := workouts.Create(ctx, w); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tests := []struct {
		name  string
		query store.Query
		want  []string
	}{
		{"owner newest first", store.Query{Owner: "u1", OrderBy: "performed_at"}, []string{"c", "b", "a"}},
		{"limit", store.Query{Owner: "u1", OrderBy: "performed_at", Limit: 2}, []string{"c", "b"}},
		{"category", store.Query{Owner: "u1", OrderBy: "performed_at", Filters: map[string]any{"category": "cardio"}}, []string{"c", "a"}},
		{"template flag", store.Query{Owner: "u1", OrderBy: "performed_at", Filters: map[string]any{"is_template": true}}, []string{"b"}},
		{
			"inclusive range",
			store.Query{Owner: "u1", OrderBy: "performed_at", RangeField: "performed_at", From: now.Add(-72 * time.Hour), To: now.Add(-48 * time.Hour)},
			[]string{"b", "a"},
		},
		{"all owners", store.Query{OrderBy: "performed_at", Filters: map[string]any{"category": "cardio"}}, []string{"d", "c", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := workouts.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			titles := make([]string, 0, len(got))
			for _, e := range got {
				titles = append(titles, e.(*entity.Workout).Title)
			}
			if fmt.Sprint(titles) != fmt.Sprint(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, titles)
			}
		})
	}

	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	for _, g := range []*entity.Goal{
		{Base: entity.Base{UserID: "u1"}, Title: "late", TargetValue: 1, TargetDate: &past},
		{Base: entity.Base{UserID: "u1"}, Title: "on time", TargetValue: 1, TargetDate: &future},
		{Base: entity.Base{UserID: "u1"}, Title: "open", TargetValue: 1},
	} {
		if _, err := goals.Create(ctx, g); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	overdue, err := goals.List(ctx, store.Query{
		Owner:      "u1",
		RangeField: "target_date",
		Before:     now,
		Filters:    map[string]any{"status": entity.GoalActive},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 1 || overdue[0].(*entity.Goal).Title != "late" {
		t.Errorf("expected only the late goal, got %d goals", len(overdue))
	}
}

func TestCriteria_SQL(t *testing.T) {
	db := newDB(t)
	q := db.NewSelect().Model((*entity.Workout)(nil))
	for _, c := range Criteria(store.Query{
		Owner:   "u1",
		OrderBy: "performed_at",
		Filters: map[string]any{"category": "cardio"},
		Limit:   3,
	}) {
		q = c(q)
	}

	query := q.String()
	for _, want := range []string{
		`"user_id" = 'u1'`,
		`"category" = 'cardio'`,
		`ORDER BY "performed_at" DESC, "id" DESC`,
		`LIMIT 3`,
	} {
		if !strings.Contains(query, want) {
			t.Errorf("expected query to contain %s, got %s", want, query)
		}
	}
	if strings.Index(query, `"user_id" =`) > strings.Index(query, `"category" =`) {
		t.Errorf("expected owner filter first, got %s", query)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), true},
		{"categorized", goerrors.New("missing", goerrors.CategoryNotFound), true},
		{"other", goerrors.New("down", goerrors.CategoryExternal), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
