package cache

import (
	"testing"
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

func TestDefaultKeySerializer(t *testing.T) {
	id := uuid.MustParse("7b0f2d9e-55a1-4c8e-9f3a-1d2c3b4a5e6f")
	from := time.Date(2024, 5, 1, 23, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	to := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		key  QueryKey
		want string
	}{
		{
			name: "list",
			key:  ListKey(entity.TypeWorkout, "u-1"),
			want: "workouts::list::owner=u-1",
		},
		{
			name: "detail",
			key:  DetailKey(entity.TypeGoal, "u-1", id),
			want: "goals::detail::owner=u-1::id=7b0f2d9e-55a1-4c8e-9f3a-1d2c3b4a5e6f",
		},
		{
			name: "date range normalised to utc days",
			key:  DateRangeKey(entity.TypeBMI, "u-1", from, to),
			want: "bmi_entries::date_range::owner=u-1::from=2024-05-01::to=2024-05-31",
		},
		{
			name: "recent with limit",
			key:  RecentKey(entity.TypeWorkout, "u-1", 10),
			want: "workouts::recent::owner=u-1::limit=10",
		},
		{
			name: "public without owner",
			key:  KindKey(entity.TypeRoutine, KindPublic, "").WithCategory("strength"),
			want: "routines::public::category=strength",
		},
		{
			name: "separators in owner are escaped",
			key:  ListKey(entity.TypeWorkout, "a::b=c"),
			want: "workouts::list::owner=a%3A%3Ab%3Dc",
		},
	}

	s := NewDefaultKeySerializer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SerializeKey(tt.key); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDefaultKeySerializer_DistinctKeys(t *testing.T) {
	s := NewDefaultKeySerializer()
	a := ListKey(entity.TypeWorkout, "a::owner=b")
	b := ListKey(entity.TypeWorkout, "a").WithCategory("owner=b")

	if s.SerializeKey(a) == s.SerializeKey(b) {
		t.Errorf("expected distinct keys to serialize differently, both gave %q", s.SerializeKey(a))
	}
}

func TestQueryKey_IsList(t *testing.T) {
	if !ListKey(entity.TypeWorkout, "u1").IsList() {
		t.Error("expected list key to hold a list")
	}
	if DetailKey(entity.TypeWorkout, "u1", uuid.New()).IsList() {
		t.Error("expected detail key to hold a single value")
	}
	if KindKey(entity.TypeBMI, KindLatest, "u1").IsList() {
		t.Error("expected latest key to hold a single value")
	}
}

func TestQueryKey_Range(t *testing.T) {
	key := DateRangeKey(entity.TypeWorkout, "u1",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))

	from, to, err := key.Range()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !from.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected range start %v", from)
	}
	if want := time.Date(2024, 5, 3, 23, 59, 59, 999999999, time.UTC); !to.Equal(want) {
		t.Errorf("expected range end %v, got %v", want, to)
	}

	bad := QueryKey{Entity: entity.TypeWorkout, Kind: KindDateRange, From: "yesterday"}
	if _, _, err := bad.Range(); err == nil {
		t.Error("expected error for malformed range")
	}
}

func TestPattern_Matches(t *testing.T) {
	id := uuid.New()
	detail := DetailKey(entity.TypeGoal, "u1", id)
	active := KindKey(entity.TypeGoal, KindActive, "u1")
	public := KindKey(entity.TypeRoutine, KindPublic, "")

	tests := []struct {
		name    string
		pattern Pattern
		key     QueryKey
		want    bool
	}{
		{"entity matches", MatchEntity(entity.TypeGoal), active, true},
		{"entity differs", MatchEntity(entity.TypeWorkout), active, false},
		{"kind listed", MatchEntity(entity.TypeGoal).Kind(KindActive, KindOverdue), active, true},
		{"kind not listed", MatchEntity(entity.TypeGoal).Kind(KindOverdue), active, false},
		{"owner matches", MatchEntity(entity.TypeGoal).Owned("u1"), active, true},
		{"owner differs", MatchEntity(entity.TypeGoal).Owned("u2"), active, false},
		{"global scope selects unowned keys", MatchEntity(entity.TypeRoutine).Owned(""), public, true},
		{"unscoped pattern ignores owner", MatchEntity(entity.TypeRoutine), public, true},
		{"target matches", MatchEntity(entity.TypeGoal).Target(id), detail, true},
		{"target differs", MatchEntity(entity.TypeGoal).Target(uuid.New()), detail, false},
		{"target excludes list keys", MatchEntity(entity.TypeGoal).Target(id), active, false},
		{"zero pattern matches all", Pattern{}, public, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.Matches(tt.key); got != tt.want {
				t.Errorf("expected %v for %s against %s, got %v", tt.want, tt.pattern, tt.key, got)
			}
		})
	}
}

func TestPattern_KindDoesNotAlias(t *testing.T) {
	base := MatchEntity(entity.TypeGoal).Kind(KindList)
	a := base.Kind(KindActive)
	b := base.Kind(KindOverdue)

	if a.Matches(KindKey(entity.TypeGoal, KindOverdue, "u1")) {
		t.Error("expected derived patterns not to share kind slices")
	}
	if !b.Matches(KindKey(entity.TypeGoal, KindOverdue, "u1")) {
		t.Error("expected derived pattern to keep its own kind")
	}
}
