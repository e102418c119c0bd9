// Package session holds the per-user state of a dashboard: the price series
// of the active ticker and the request that produced it.
package session

import (
	"sync/atomic"
	"time"

	"github.com/raykavin/forecastx/pkg/core"
)

// Store is the single source of truth for the active series. A fetch replaces
// the whole dataframe at once; readers always see a complete snapshot.
type Store struct {
	current atomic.Pointer[core.Dataframe]
	updated atomic.Int64
}

// Replace swaps in df as the active series. The store keeps its own copy.
func (s *Store) Replace(df *core.Dataframe) {
	s.current.Store(df.Clone())
	s.updated.Store(time.Now().UnixNano())
}

// Snapshot returns the active series, nil before the first fetch.
// Callers must treat it as read-only.
func (s *Store) Snapshot() *core.Dataframe {
	return s.current.Load()
}

// Clear drops the active series
func (s *Store) Clear() {
	s.current.Store(nil)
	s.updated.Store(0)
}

// UpdatedAt returns when the series was last replaced
func (s *Store) UpdatedAt() time.Time {
	nanos := s.updated.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
