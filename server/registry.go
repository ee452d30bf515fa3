package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"power_dashboard/config"
	"power_dashboard/session"
)

type entry struct {
	mu       sync.Mutex
	sess     *session.Session
	lastSeen time.Time
}

// Registry maps browser sessions to their dashboard state
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	cfg      *config.Config
	lifetime time.Duration
	now      func() time.Time
}

// NewRegistry creates an empty registry. Sessions idle for longer than
// lifetime are dropped.
func NewRegistry(cfg *config.Config, lifetime time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// NewID returns a fresh registry key
func NewID() string {
	return uuid.NewString()
}

// Acquire returns the session for id, creating it on first use, and locks
// it. The caller must call release when done.
func (r *Registry) Acquire(id string) (sess *session.Session, release func()) {
	r.mu.Lock()
	now := r.now()
	r.sweep(now)
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{sess: session.New(id, r.cfg)}
		r.sessions[id] = e
	}
	e.lastSeen = now
	r.mu.Unlock()

	e.mu.Lock()
	return e.sess, e.mu.Unlock
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep drops idle sessions; r.mu must be held
func (r *Registry) sweep(now time.Time) {
	if r.lifetime <= 0 {
		return
	}
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.lifetime {
			delete(r.sessions, id)
		}
	}
}
