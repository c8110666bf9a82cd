package cache

import (
	"time"

	"github.com/goliatone/go-fitsync/entity"
	"github.com/google/uuid"
)

// Value is the payload of a cache slot: a single entity (possibly absent)
// or an ordered list of entities.
type Value struct {
	Single entity.Entity
	List   []entity.Entity
	IsList bool
}

// One wraps a single entity. A nil entity records a known absence.
func One(e entity.Entity) Value {
	return Value{Single: e}
}

// Many wraps an ordered list.
func Many(list []entity.Entity) Value {
	if list == nil {
		list = []entity.Entity{}
	}
	return Value{List: list, IsList: true}
}

// Clone returns a structural deep copy of the value.
func (v Value) Clone() Value {
	out := Value{IsList: v.IsList}
	if v.Single != nil {
		out.Single = v.Single.Clone()
	}
	if v.List != nil {
		out.List = make([]entity.Entity, len(v.List))
		for i, e := range v.List {
			out.List[i] = e.Clone()
		}
	}
	return out
}

// Find returns the entity with the given id held by the value.
func (v Value) Find(id uuid.UUID) (entity.Entity, bool) {
	if v.IsList {
		for _, e := range v.List {
			if e.GetID() == id {
				return e, true
			}
		}
		return nil, false
	}
	if v.Single != nil && v.Single.GetID() == id {
		return v.Single, true
	}
	return nil, false
}

// Entry is one cache slot. It is fresh while now < StaleAfter.
type Entry struct {
	Key        QueryKey
	Value      Value
	FetchedAt  time.Time
	StaleAfter time.Time
}

func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.StaleAfter)
}

func (e Entry) Clone() Entry {
	e.Value = e.Value.Clone()
	return e
}

// Snapshot holds deep copies of the entries an optimistic write replaced,
// taken before the write. Restoring it puts those copies back verbatim.
type Snapshot struct {
	entries []Entry
}

func (s Snapshot) Len() int { return len(s.entries) }

// Keys returns the keys captured by the snapshot, in capture order.
func (s Snapshot) Keys() []QueryKey {
	keys := make([]QueryKey, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns copies of the captured entries.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}
