package batchimport

import (
	"sync"
	"time"

	"github.com/dvloznov/finance-client/internal/domain"
)

// Registry keeps the open sessions of a long-running process.
type Registry struct {
	coord *Coordinator

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions use coord.
func NewRegistry(coord *Coordinator) *Registry {
	return &Registry{coord: coord, sessions: make(map[string]*Session)}
}

// Open starts and registers a new session.
func (r *Registry) Open(accounts []domain.Account) *Session {
	s := r.coord.NewSession(accounts)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close closes and forgets a session. It reports whether the session existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseIdle closes sessions created before now minus maxAge and returns how
// many were closed.
func (r *Registry) CloseIdle(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}
