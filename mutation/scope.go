package mutation

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-fitsync/entity"
)

// scopeLocks serializes mutations per (entity type, owner) scope. Scopes
// hash onto a fixed set of stripes, so unrelated scopes may share one.
type scopeLocks struct {
	stripes []sync.Mutex
}

func newScopeLocks(n int) *scopeLocks {
	if n <= 0 {
		n = 1
	}
	return &scopeLocks{stripes: make([]sync.Mutex, n)}
}

func (s *scopeLocks) stripe(t entity.Type, owner string) int {
	h := xxhash.Sum64String(string(t) + "/" + owner)
	return int(h % uint64(len(s.stripes)))
}

func (s *scopeLocks) lock(t entity.Type, owner string) func() {
	m := &s.stripes[s.stripe(t, owner)]
	m.Lock()
	return m.Unlock
}
