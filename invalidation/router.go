package invalidation

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/goliatone/go-fitsync/cache"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scope selects which keys of a kind a rule reaches.
type Scope int

const (
	// ScopeOwner reaches keys scoped to the mutating owner.
	ScopeOwner Scope = iota
	// ScopeGlobal reaches keys without an owner, such as public routines.
	ScopeGlobal
	// ScopeTarget reaches keys addressing the mutated record.
	ScopeTarget
)

func (s Scope) String() string {
	switch s {
	case ScopeOwner:
		return "owner"
	case ScopeGlobal:
		return "global"
	case ScopeTarget:
		return "target"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Flag marks conditions a mutation reports about the record it touched.
type Flag uint8

const (
	// FlagTemplate is set when the workout was or becomes a template.
	FlagTemplate Flag = 1 << iota
)

// Rule is one row of an invalidation set. A rule with a non-zero When
// only applies when the request carries every flag in it.
type Rule struct {
	Kind  cache.QueryKind
	Scope Scope
	When  Flag
}

// Pair addresses one row of the table.
type Pair struct {
	Entity entity.Type
	Op     entity.Op
}

func (p Pair) String() string { return string(p.Entity) + "/" + string(p.Op) }

// Table maps every supported mutation to the rules applied after it
// settles successfully.
type Table map[Pair][]Rule

// Request describes a settled mutation.
type Request struct {
	Entity entity.Type
	Op     entity.Op
	Owner  string
	ID     uuid.UUID
	Flags  Flag
}

var (
	listFamily = []Rule{{Kind: cache.KindList, Scope: ScopeOwner}}
	detail     = Rule{Kind: cache.KindDetail, Scope: ScopeTarget}
)

func rules(extra ...Rule) []Rule {
	return append(slices.Clone(listFamily), extra...)
}

// DefaultTable returns the built-in invalidation sets.
func DefaultTable() Table {
	workoutFamily := []Rule{
		{Kind: cache.KindDateRange, Scope: ScopeOwner},
		{Kind: cache.KindRecent, Scope: ScopeOwner},
		{Kind: cache.KindTemplates, Scope: ScopeOwner, When: FlagTemplate},
	}
	goalFamily := []Rule{
		{Kind: cache.KindActive, Scope: ScopeOwner},
		{Kind: cache.KindOverdue, Scope: ScopeOwner},
	}
	bmiFamily := []Rule{
		{Kind: cache.KindDateRange, Scope: ScopeOwner},
		{Kind: cache.KindLatest, Scope: ScopeOwner},
	}
	public := Rule{Kind: cache.KindPublic, Scope: ScopeGlobal}
	mostUsed := Rule{Kind: cache.KindMostUsed, Scope: ScopeOwner}

	return Table{
		{entity.TypeWorkout, entity.OpCreate}: rules(workoutFamily...),
		{entity.TypeWorkout, entity.OpUpdate}: rules(append(slices.Clone(workoutFamily), detail)...),
		{entity.TypeWorkout, entity.OpDelete}: rules(append(slices.Clone(workoutFamily), detail)...),

		{entity.TypeGoal, entity.OpCreate}:   rules(goalFamily...),
		{entity.TypeGoal, entity.OpUpdate}:   rules(append(slices.Clone(goalFamily), detail)...),
		{entity.TypeGoal, entity.OpDelete}:   rules(append(slices.Clone(goalFamily), detail)...),
		{entity.TypeGoal, entity.OpProgress}: rules(append(slices.Clone(goalFamily), detail)...),

		{entity.TypeRoutine, entity.OpCreate}: rules(mostUsed, public),
		{entity.TypeRoutine, entity.OpUpdate}: rules(public, detail),
		{entity.TypeRoutine, entity.OpDelete}: rules(mostUsed, public, detail),
		{entity.TypeRoutine, entity.OpUsage}:  rules(mostUsed, detail),

		{entity.TypeBMI, entity.OpCreate}: rules(bmiFamily...),
		{entity.TypeBMI, entity.OpUpdate}: rules(append(slices.Clone(bmiFamily), detail)...),
		{entity.TypeBMI, entity.OpDelete}: rules(append(slices.Clone(bmiFamily), detail)...),
	}
}

// Pairs returns the rows of the table in a stable order.
func (t Table) Pairs() []Pair {
	pairs := make([]Pair, 0, len(t))
	for p := range t {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// Validate checks every row: the entity is known, the owner's list key
// is always included and every rule targets a kind the entity supports.
func (t Table) Validate() error {
	var errs []error
	for _, pair := range t.Pairs() {
		if !pair.Entity.Valid() {
			errs = append(errs, fmt.Errorf("invalidation: unknown entity in %s", pair))
			continue
		}
		hasList := false
		for _, rule := range t[pair] {
			if !slices.Contains(cache.SupportedKinds(pair.Entity), rule.Kind) {
				errs = append(errs, fmt.Errorf("invalidation: %s targets unsupported kind %s", pair, rule.Kind))
			}
			if rule.Kind == cache.KindList && rule.Scope == ScopeOwner && rule.When == 0 {
				hasList = true
			}
		}
		if !hasList {
			errs = append(errs, fmt.Errorf("invalidation: %s does not include the owner's list", pair))
		}
	}
	return errors.Join(errs...)
}

// Covers checks the table defines a row for every pair given.
func (t Table) Covers(pairs []Pair) error {
	var errs []error
	for _, pair := range pairs {
		if _, ok := t[pair]; !ok {
			errs = append(errs, fmt.Errorf("invalidation: no rules defined for %s", pair))
		}
	}
	return errors.Join(errs...)
}

// Router resolves settled mutations into cache patterns.
type Router struct {
	table  Table
	logger zerolog.Logger
}

type Option func(*Router)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// NewRouter validates table and returns a router over it.
func NewRouter(table Table, opts ...Option) (*Router, error) {
	if len(table) == 0 {
		return nil, errors.New("invalidation: table is empty")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	r := &Router{table: table, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Table returns the router's table.
func (r *Router) Table() Table {
	return r.table
}

// Resolve returns the patterns to invalidate after req settles. Target
// rules are skipped when req has no ID.
func (r *Router) Resolve(req Request) ([]cache.Pattern, error) {
	pair := Pair{Entity: req.Entity, Op: req.Op}
	set, ok := r.table[pair]
	if !ok {
		return nil, fmt.Errorf("invalidation: no rules defined for %s", pair)
	}

	patterns := make([]cache.Pattern, 0, len(set))
	for _, rule := range set {
		if rule.When != 0 && req.Flags&rule.When != rule.When {
			continue
		}

		p := cache.MatchEntity(req.Entity).Kind(rule.Kind)
		switch rule.Scope {
		case ScopeOwner:
			p = p.Owned(req.Owner)
		case ScopeGlobal:
			p = p.Owned("")
		case ScopeTarget:
			if req.ID == uuid.Nil {
				continue
			}
			p = p.Target(req.ID)
		}
		patterns = append(patterns, p)
	}

	r.logger.Debug().
		Str("pair", pair.String()).
		Int("patterns", len(patterns)).
		Msg("resolved invalidation set")
	return patterns, nil
}
