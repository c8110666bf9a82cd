package invalidation

import (
	"testing"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

func allPairs() []Pair {
	return []Pair{
		{entity.TypeWorkout, entity.OpCreate},
		{entity.TypeWorkout, entity.OpUpdate},
		{entity.TypeWorkout, entity.OpDelete},
		{entity.TypeGoal, entity.OpCreate},
		{entity.TypeGoal, entity.OpUpdate},
		{entity.TypeGoal, entity.OpDelete},
		{entity.TypeGoal, entity.OpProgress},
		{entity.TypeRoutine, entity.OpCreate},
		{entity.TypeRoutine, entity.OpUpdate},
		{entity.TypeRoutine, entity.OpDelete},
		{entity.TypeRoutine, entity.OpUsage},
		{entity.TypeBMI, entity.OpCreate},
		{entity.TypeBMI, entity.OpUpdate},
		{entity.TypeBMI, entity.OpDelete},
	}
}

func TestDefaultTable_IsTotal(t *testing.T) {
	table := DefaultTable()
	if err := table.Validate(); err != nil {
		t.Fatalf("expected default table to be valid, got %v", err)
	}
	if err := table.Covers(allPairs()); err != nil {
		t.Fatalf("expected default table to cover every mutation, got %v", err)
	}
	if len(table) != len(allPairs()) {
		t.Errorf("expected %d rows, got %d", len(allPairs()), len(table))
	}
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{
			name:  "missing owner list",
			table: Table{{entity.TypeGoal, entity.OpCreate}: {{Kind: cache.KindActive, Scope: ScopeOwner}}},
		},
		{
			name:  "conditional list does not count",
			table: Table{{entity.TypeWorkout, entity.OpCreate}: {{Kind: cache.KindList, Scope: ScopeOwner, When: FlagTemplate}}},
		},
		{
			name:  "unsupported kind",
			table: Table{{entity.TypeBMI, entity.OpCreate}: rules(Rule{Kind: cache.KindMostUsed, Scope: ScopeOwner})},
		},
		{
			name:  "unknown entity",
			table: Table{{entity.Type("meals"), entity.OpCreate}: rules()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.table.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTable_Covers(t *testing.T) {
	table := DefaultTable()
	delete(table, Pair{entity.TypeRoutine, entity.OpUsage})

	if err := table.Covers(allPairs()); err == nil {
		t.Error("expected missing row to be reported")
	}
}

func TestNewRouter_RejectsEmptyTable(t *testing.T) {
	if _, err := NewRouter(nil); err == nil {
		t.Error("expected error for empty table")
	}
}

func TestRouter_Resolve(t *testing.T) {
	router, err := NewRouter(DefaultTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := uuid.New()
	owner := "u1"

	tests := []struct {
		name    string
		req     Request
		hits    []cache.QueryKey
		misses  []cache.QueryKey
		wantLen int
	}{
		{
			name: "routine usage reaches list and most used",
			req:  Request{Entity: entity.TypeRoutine, Op: entity.OpUsage, Owner: owner, ID: id},
			hits: []cache.QueryKey{
				cache.ListKey(entity.TypeRoutine, owner),
				cache.KindKey(entity.TypeRoutine, cache.KindMostUsed, owner),
				cache.DetailKey(entity.TypeRoutine, owner, id),
			},
			misses: []cache.QueryKey{
				cache.KindKey(entity.TypeRoutine, cache.KindPublic, ""),
				cache.ListKey(entity.TypeRoutine, "u2"),
			},
			wantLen: 3,
		},
		{
			name: "workout create without template flag skips templates",
			req:  Request{Entity: entity.TypeWorkout, Op: entity.OpCreate, Owner: owner},
			hits: []cache.QueryKey{
				cache.ListKey(entity.TypeWorkout, owner),
				cache.RecentKey(entity.TypeWorkout, owner, 5),
			},
			misses: []cache.QueryKey{
				cache.KindKey(entity.TypeWorkout, cache.KindTemplates, owner),
			},
			wantLen: 3,
		},
		{
			name: "workout update with template flag reaches templates",
			req:  Request{Entity: entity.TypeWorkout, Op: entity.OpUpdate, Owner: owner, ID: id, Flags: FlagTemplate},
			hits: []cache.QueryKey{
				cache.KindKey(entity.TypeWorkout, cache.KindTemplates, owner),
				cache.DetailKey(entity.TypeWorkout, owner, id),
			},
			wantLen: 5,
		},
		{
			name: "bmi create reaches latest and history",
			req:  Request{Entity: entity.TypeBMI, Op: entity.OpCreate, Owner: owner},
			hits: []cache.QueryKey{
				cache.ListKey(entity.TypeBMI, owner),
				cache.KindKey(entity.TypeBMI, cache.KindLatest, owner),
			},
			wantLen: 3,
		},
		{
			name: "goal progress reaches active and overdue",
			req:  Request{Entity: entity.TypeGoal, Op: entity.OpProgress, Owner: owner, ID: id},
			hits: []cache.QueryKey{
				cache.KindKey(entity.TypeGoal, cache.KindActive, owner),
				cache.KindKey(entity.TypeGoal, cache.KindOverdue, owner),
				cache.DetailKey(entity.TypeGoal, owner, id),
			},
			misses: []cache.QueryKey{
				cache.DetailKey(entity.TypeGoal, owner, uuid.New()),
			},
			wantLen: 4,
		},
		{
			name: "routine create reaches public discovery",
			req:  Request{Entity: entity.TypeRoutine, Op: entity.OpCreate, Owner: owner},
			hits: []cache.QueryKey{
				cache.KindKey(entity.TypeRoutine, cache.KindPublic, ""),
			},
			misses: []cache.QueryKey{
				cache.ListKey(entity.TypeWorkout, owner),
			},
			wantLen: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns, err := router.Resolve(tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(patterns) != tt.wantLen {
				t.Errorf("expected %d patterns, got %d: %v", tt.wantLen, len(patterns), patterns)
			}
			for _, k := range tt.hits {
				if !anyMatch(patterns, k) {
					t.Errorf("expected %s to be invalidated", k)
				}
			}
			for _, k := range tt.misses {
				if anyMatch(patterns, k) {
					t.Errorf("expected %s to be left alone", k)
				}
			}
		})
	}
}

func TestRouter_ResolveUnknownPair(t *testing.T) {
	router, err := NewRouter(DefaultTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := router.Resolve(Request{Entity: entity.TypeBMI, Op: entity.OpUsage}); err == nil {
		t.Error("expected error for a pair without rules")
	}
}

func anyMatch(patterns []cache.Pattern, key cache.QueryKey) bool {
	for _, p := range patterns {
		if p.Matches(key) {
			return true
		}
	}
	return false
}
