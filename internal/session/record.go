// Package session implements the login session state machine and the
// process-wide registry of live and suspended browser sessions.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/dialect"
)

// Mode distinguishes artifact-only logins from credential logins.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// State is a session's lifecycle state.
type State string

const (
	StateRunning              State = "running"
	StateAwaitingSecondFactor State = "awaiting-second-factor"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
	StateClosed               State = "closed"
)

// Session is one live browser instance bound to one login attempt.
// The machine that created it is the only writer of its state field;
// external callers reach it only through Registry operations.
type Session struct {
	ID        string
	Identity  string
	Dialect   dialect.Dialect
	Mode      Mode
	CreatedAt time.Time
	CacheDir  string // empty for fresh credential logins

	browser browser.Browser
	page    browser.Page

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

// NewSessionID derives a unique session id from the attempt parameters.
// Ids embed the creation time so they are never reused.
func NewSessionID(identity string, d dialect.Dialect, mode Mode) string {
	return fmt.Sprintf("%s.%s.%s.%d", artifacts.SanitizeIdentity(identity), d, mode, time.Now().UnixNano())
}

func newSession(identity string, d dialect.Dialect, mode Mode, b browser.Browser, page browser.Page, cacheDir string) *Session {
	return &Session{
		ID:        NewSessionID(identity, d, mode),
		Identity:  identity,
		Dialect:   d,
		Mode:      mode,
		CreatedAt: time.Now(),
		CacheDir:  cacheDir,
		browser:   b,
		page:      page,
		state:     StateRunning,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Page returns the session's page handle.
func (s *Session) Page() browser.Page {
	return s.page
}

// Uptime returns how long the session has existed.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.CreatedAt)
}

// closeBrowser shuts the underlying browser down exactly once.
func (s *Session) closeBrowser() {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.browser.Close()
		}
	})
}

// Info is the externally visible snapshot of a session.
type Info struct {
	SessionID string          `json:"sessionId"`
	Identity  string          `json:"identity"`
	Dialect   dialect.Dialect `json:"dialect"`
	Mode      Mode            `json:"mode"`
	State     State           `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	Uptime    string          `json:"uptime"`
}

// Info returns a snapshot of the session for listings.
func (s *Session) Info() Info {
	return Info{
		SessionID: s.ID,
		Identity:  s.Identity,
		Dialect:   s.Dialect,
		Mode:      s.Mode,
		State:     s.State(),
		CreatedAt: s.CreatedAt,
		Uptime:    s.Uptime().Truncate(time.Second).String(),
	}
}
