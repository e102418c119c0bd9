package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Query is what the user asked the price source for
type Query struct {
	Ticker string    `json:"ticker"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Session is the explicit context passed into every pipeline pass.
// It is created on the first fetch and torn down with Close.
type Session struct {
	ID    string
	Store *Store

	mu        sync.Mutex
	query     Query
	warned    bool
	closed    bool
	createdAt time.Time
}

func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		Store:     new(Store),
		createdAt: time.Now(),
	}
}

// Query returns the request that produced the active series
func (s *Session) Query() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SetQuery records the query of the latest successful fetch
func (s *Session) SetQuery(q Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// Warn marks the "no data" warning as shown and reports whether this is the
// first time it is shown for the session.
func (s *Session) Warn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.warned
	s.warned = true
	return first
}

// Warned reports whether the "no data" warning was shown
func (s *Session) Warned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warned
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Close releases the session state
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Store.Clear()
	s.query = Query{}
	s.warned = false
	s.closed = true
}
