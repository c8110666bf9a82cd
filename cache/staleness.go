package cache

import (
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-fitsync/entity"
)

// StalenessKey addresses one row of the staleness table.
type StalenessKey struct {
	Entity entity.Type
	Kind   QueryKind
}

// StalenessTable maps every supported (entity, kind) pair to the window
// after which a cached result must be refetched.
type StalenessTable map[StalenessKey]time.Duration

// SupportedKinds lists the query kinds each entity type can be cached under.
func SupportedKinds(t entity.Type) []QueryKind {
	switch t {
	case entity.TypeWorkout:
		return []QueryKind{KindList, KindDetail, KindDateRange, KindRecent, KindTemplates}
	case entity.TypeGoal:
		return []QueryKind{KindList, KindDetail, KindActive, KindOverdue}
	case entity.TypeRoutine:
		return []QueryKind{KindList, KindDetail, KindMostUsed, KindPublic}
	case entity.TypeBMI:
		return []QueryKind{KindList, KindDetail, KindDateRange, KindLatest}
	}
	return nil
}

// DefaultStaleness returns the built-in table. Date-range and recent
// queries go stale after a minute, discovery queries after fifteen.
func DefaultStaleness() StalenessTable {
	return StalenessTable{
		{entity.TypeWorkout, KindList}:      5 * time.Minute,
		{entity.TypeWorkout, KindDetail}:    5 * time.Minute,
		{entity.TypeWorkout, KindDateRange}: time.Minute,
		{entity.TypeWorkout, KindRecent}:    time.Minute,
		{entity.TypeWorkout, KindTemplates}: 10 * time.Minute,

		{entity.TypeGoal, KindList}:    5 * time.Minute,
		{entity.TypeGoal, KindDetail}:  5 * time.Minute,
		{entity.TypeGoal, KindActive}:  2 * time.Minute,
		{entity.TypeGoal, KindOverdue}: 5 * time.Minute,

		{entity.TypeRoutine, KindList}:     5 * time.Minute,
		{entity.TypeRoutine, KindDetail}:   5 * time.Minute,
		{entity.TypeRoutine, KindMostUsed}: 10 * time.Minute,
		{entity.TypeRoutine, KindPublic}:   15 * time.Minute,

		{entity.TypeBMI, KindList}:      5 * time.Minute,
		{entity.TypeBMI, KindDetail}:    5 * time.Minute,
		{entity.TypeBMI, KindDateRange}: time.Minute,
		{entity.TypeBMI, KindLatest}:    2 * time.Minute,
	}
}

// Lookup returns the window for the pair.
func (t StalenessTable) Lookup(e entity.Type, k QueryKind) (time.Duration, error) {
	d, ok := t[StalenessKey{e, k}]
	if !ok {
		return 0, fmt.Errorf("no staleness window configured for %s/%s", e, k)
	}
	return d, nil
}

// Merge returns a copy of t with overrides applied on top.
func (t StalenessTable) Merge(overrides StalenessTable) StalenessTable {
	out := make(StalenessTable, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Max returns the longest configured window.
func (t StalenessTable) Max() time.Duration {
	var longest time.Duration
	for _, d := range t {
		longest = max(longest, d)
	}
	return longest
}

// Validate checks the table is total over the supported pairs and that
// every window is positive.
func (t StalenessTable) Validate() error {
	for _, e := range entity.Types() {
		for _, k := range SupportedKinds(e) {
			d, ok := t[StalenessKey{e, k}]
			if !ok {
				return fmt.Errorf("staleness table is missing %s/%s", e, k)
			}
			if d <= 0 {
				return fmt.Errorf("staleness window for %s/%s must be positive, got %v", e, k, d)
			}
		}
	}
	for k := range t {
		if !supports(k.Entity, k.Kind) {
			return fmt.Errorf("staleness table has unsupported pair %s/%s", k.Entity, k.Kind)
		}
	}
	return nil
}

func supports(e entity.Type, k QueryKind) bool {
	return slices.Contains(SupportedKinds(e), k)
}

// PollPolicy forces a refetch of every key of one kind on a fixed
// interval, regardless of staleness.
type PollPolicy struct {
	Entity   entity.Type
	Kind     QueryKind
	Interval time.Duration
}

// DefaultPollPolicy refetches overdue goals every five minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Entity: entity.TypeGoal, Kind: KindOverdue, Interval: 5 * time.Minute}
}
