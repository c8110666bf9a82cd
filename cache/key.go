package cache

import (
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

// QueryKind names the shape of a cached query.
type QueryKind string

const (
	KindList      QueryKind = "list"
	KindDetail    QueryKind = "detail"
	KindDateRange QueryKind = "date_range"
	KindRecent    QueryKind = "recent"
	KindTemplates QueryKind = "templates"
	KindActive    QueryKind = "active"
	KindOverdue   QueryKind = "overdue"
	KindMostUsed  QueryKind = "most_used"
	KindPublic    QueryKind = "public"
	KindLatest    QueryKind = "latest"
)

// DayLayout is the layout used for date-range components of a key.
const DayLayout = "2006-01-02"

// QueryKey identifies one cache slot. It is comparable: two keys with the
// same components address the same slot.
type QueryKey struct {
	Entity   entity.Type
	Kind     QueryKind
	Owner    string
	ID       uuid.UUID
	From     string
	To       string
	Category string
	Limit    int
}

func ListKey(t entity.Type, owner string) QueryKey {
	return QueryKey{Entity: t, Kind: KindList, Owner: owner}
}

func DetailKey(t entity.Type, owner string, id uuid.UUID) QueryKey {
	return QueryKey{Entity: t, Kind: KindDetail, Owner: owner, ID: id}
}

// DateRangeKey builds an inclusive day range key. Times are normalised
// to UTC days.
func DateRangeKey(t entity.Type, owner string, from, to time.Time) QueryKey {
	return QueryKey{
		Entity: t,
		Kind:   KindDateRange,
		Owner:  owner,
		From:   from.UTC().Format(DayLayout),
		To:     to.UTC().Format(DayLayout),
	}
}

func RecentKey(t entity.Type, owner string, limit int) QueryKey {
	return QueryKey{Entity: t, Kind: KindRecent, Owner: owner, Limit: limit}
}

// KindKey builds a key for kinds that only need an owner scope, such as
// templates, active goals or most used routines. Public keys use an
// empty owner.
func KindKey(t entity.Type, kind QueryKind, owner string) QueryKey {
	return QueryKey{Entity: t, Kind: kind, Owner: owner}
}

func (k QueryKey) WithCategory(category string) QueryKey {
	k.Category = category
	return k
}

func (k QueryKey) WithLimit(limit int) QueryKey {
	k.Limit = limit
	return k
}

// IsList reports whether the slot holds an ordered list of entities.
func (k QueryKey) IsList() bool {
	return k.Kind != KindDetail && k.Kind != KindLatest
}

// Range parses the From and To components. Zero times are returned for
// empty components; To is moved to the end of its day.
func (k QueryKey) Range() (from, to time.Time, err error) {
	if k.From != "" {
		if from, err = time.Parse(DayLayout, k.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid range start %q: %w", k.From, err)
		}
	}
	if k.To != "" {
		if to, err = time.Parse(DayLayout, k.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid range end %q: %w", k.To, err)
		}
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

func (k QueryKey) String() string {
	return defaultSerializer.SerializeKey(k)
}

// Pattern selects registered keys, used for invalidation and for locating
// the slots a mutation touches. Zero fields match anything, except Owner
// which only applies when OwnerScoped is set.
type Pattern struct {
	Entity      entity.Type
	Kinds       []QueryKind
	Owner       string
	OwnerScoped bool
	ID          uuid.UUID
}

// MatchEntity selects every key of entity type t.
func MatchEntity(t entity.Type) Pattern {
	return Pattern{Entity: t}
}

// Kind restricts the pattern to the given kinds.
func (p Pattern) Kind(kinds ...QueryKind) Pattern {
	p.Kinds = append(slices.Clone(p.Kinds), kinds...)
	return p
}

// Owned restricts the pattern to keys scoped to owner. An empty owner
// selects global keys.
func (p Pattern) Owned(owner string) Pattern {
	p.Owner = owner
	p.OwnerScoped = true
	return p
}

// Target restricts the pattern to keys addressing a single entity.
func (p Pattern) Target(id uuid.UUID) Pattern {
	p.ID = id
	return p
}

// Matches reports whether k is selected by the pattern.
func (p Pattern) Matches(k QueryKey) bool {
	if p.Entity != "" && p.Entity != k.Entity {
		return false
	}
	if len(p.Kinds) > 0 && !slices.Contains(p.Kinds, k.Kind) {
		return false
	}
	if p.OwnerScoped && p.Owner != k.Owner {
		return false
	}
	if p.ID != uuid.Nil && p.ID != k.ID {
		return false
	}
	return true
}

func (p Pattern) String() string {
	owner := "*"
	if p.OwnerScoped {
		owner = p.Owner
	}
	id := "*"
	if p.ID != uuid.Nil {
		id = p.ID.String()
	}
	return fmt.Sprintf("%s/%v/%s/%s", p.Entity, p.Kinds, owner, id)
}
