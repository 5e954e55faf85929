package session

import (
	"sync"
	"time"

	"github.com/bvisser/relogin/internal/dialect"
	. "github.com/bvisser/relogin/internal/logging"
)

// Pending is the record of a session suspended for second-factor input.
// Exactly one exists per session in the awaiting-second-factor state.
type Pending struct {
	SessionID   string          `json:"sessionId"`
	Identity    string          `json:"identity"`
	Dialect     dialect.Dialect `json:"dialect"`
	SuspendedAt time.Time       `json:"suspendedAt"`

	timer *time.Timer
}

// Registry is the process-wide table of in-flight and suspended
// sessions. It is an injectable object, not ambient global state, so
// tests can run several independent registries side by side.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*Pending
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*Pending),
	}
}

// Register adds a session to the registry.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	L_debug("registry: session registered", "id", s.ID, "identity", s.Identity, "mode", s.Mode)
}

// Get returns the session with the given id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove deletes the session with the given id. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// ListAll returns a point-in-time snapshot of every registered session.
// Safe to call while other operations mutate the registry.
func (r *Registry) ListAll() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// AddPending records a suspended session. The optional expire callback
// fires (in its own goroutine) if the pending record is still present
// after timeout; the callback receives the entry only if it wins the
// take, so an expiry can never race a resume or cancel for the same
// record.
func (r *Registry) AddPending(p *Pending, timeout time.Duration, onExpire func(*Pending)) {
	if timeout > 0 && onExpire != nil {
		p.timer = time.AfterFunc(timeout, func() {
			if taken, ok := r.TakePending(p.SessionID); ok {
				onExpire(taken)
			}
		})
	}
	r.mu.Lock()
	r.pending[p.SessionID] = p
	r.mu.Unlock()
	L_debug("registry: pending second factor", "id", p.SessionID)
}

// TakePending atomically checks for and removes the pending record for a
// session id. Resume, cancel and expiry all go through this, so whoever
// arrives first wins the record and the others observe absence.
func (r *Registry) TakePending(id string) (*Pending, bool) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if ok && p.timer != nil {
		p.timer.Stop()
	}
	return p, ok
}

// ListPending returns a snapshot of all pending second-factor records.
func (r *Registry) ListPending() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pending, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, Pending{
			SessionID:   p.SessionID,
			Identity:    p.Identity,
			Dialect:     p.Dialect,
			SuspendedAt: p.SuspendedAt,
		})
	}
	return out
}
