package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/dialect"
	. "github.com/bvisser/relogin/internal/logging"
	"github.com/bvisser/relogin/internal/session"
)

// LoginStatus is the outward-facing outcome of a login request.
type LoginStatus string

const (
	StatusSuccess      LoginStatus = "success"
	StatusSecondFactor LoginStatus = "second-factor-required"
	StatusFailed       LoginStatus = "failed"
)

// LoginResult is what callers of Login and QuickLogin receive. Failures
// carry a human-readable detail string rather than an error value; the
// boundary (CLI, HTTP) renders it as-is.
type LoginResult struct {
	Status    LoginStatus     `json:"status"`
	SessionID string          `json:"session_id,omitempty"`
	Dialect   dialect.Dialect `json:"dialect,omitempty"`
	Detail    string          `json:"detail,omitempty"`
}

// SecondFactorResult is the outcome of submitting or cancelling a code.
type SecondFactorResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	ResumeStatusSuccess      = "success"
	ResumeStatusStillPending = "still-pending"
	ResumeStatusFailed       = "failed"
	ResumeStatusNotFound     = "not-found"
)

// Service applies orchestration policy on top of the session machine:
// which page variants to try in what order, and how per-variant
// failures combine into one outward result.
type Service struct {
	machine  *session.Machine
	registry *session.Registry
	store    *artifacts.Store
	caches   *browser.CacheManager
}

// New wires a service from its collaborators.
func New(machine *session.Machine, registry *session.Registry, store *artifacts.Store, caches *browser.CacheManager) *Service {
	return &Service{machine: machine, registry: registry, store: store, caches: caches}
}

// Login runs a credential login, trying page variants in the order the
// choice dictates. A second-factor suspension on any variant stops the
// ladder and surfaces the suspended session; only hard failures fall
// through to the next variant.
func (s *Service) Login(identity, secret string, choice dialect.Choice) LoginResult {
	var details []string
	for _, d := range choice.Order() {
		r := s.machine.Login(identity, secret, d)
		switch r.Outcome {
		case session.OutcomeSuccess:
			return LoginResult{Status: StatusSuccess, SessionID: r.SessionID, Dialect: r.Dialect}
		case session.OutcomeSecondFactor:
			return LoginResult{Status: StatusSecondFactor, SessionID: r.SessionID, Dialect: r.Dialect}
		default:
			details = append(details, fmt.Sprintf("%s: %v", d, r.Err))
		}
	}
	L_warn("service: login failed on all variants", "identity", identity, "detail", strings.Join(details, "; "))
	return LoginResult{Status: StatusFailed, Detail: strings.Join(details, "; ")}
}

// QuickLogin attempts artifact-based re-entry across the chosen
// variants. It never falls back to typing credentials: no artifacts
// means an immediate failure, and a failed restore on every variant is
// reported as such.
func (s *Service) QuickLogin(identity string, choice dialect.Choice) LoginResult {
	var details []string
	for _, d := range choice.Order() {
		r := s.machine.QuickLogin(identity, d)
		switch {
		case r.Outcome == session.OutcomeSuccess:
			return LoginResult{Status: StatusSuccess, SessionID: r.SessionID, Dialect: r.Dialect}
		case errors.Is(r.Err, artifacts.ErrNoArtifacts):
			// Artifacts are per-identity, not per-variant; the next
			// variant would fail identically.
			return LoginResult{Status: StatusFailed, Detail: "no usable login artifacts for " + identity}
		default:
			details = append(details, fmt.Sprintf("%s: %v", d, r.Err))
		}
	}
	L_warn("service: quick login failed on all variants", "identity", identity)
	return LoginResult{Status: StatusFailed, Detail: "quick login failed on every page variant: " + strings.Join(details, "; ")}
}

// SubmitSecondFactor forwards a verification code to a suspended
// session.
func (s *Service) SubmitSecondFactor(sessionID, code string) SecondFactorResult {
	r := s.machine.SubmitSecondFactor(sessionID, code)
	switch r.Outcome {
	case session.ResumeSuccess:
		return SecondFactorResult{Status: ResumeStatusSuccess}
	case session.ResumeStillPending:
		return SecondFactorResult{Status: ResumeStatusStillPending, Detail: "code not accepted, session still awaiting second factor"}
	case session.ResumeNotFound:
		return SecondFactorResult{Status: ResumeStatusNotFound, Detail: "no session awaiting a second factor under this id"}
	default:
		return SecondFactorResult{Status: ResumeStatusFailed, Detail: r.Err.Error()}
	}
}

// CancelSecondFactor abandons a suspended session.
func (s *Service) CancelSecondFactor(sessionID string) bool {
	return s.machine.Cancel(sessionID)
}

// CloseSession terminates a session by id.
func (s *Service) CloseSession(sessionID string) bool {
	return s.machine.Terminate(sessionID)
}

// Sessions snapshots all registered sessions.
func (s *Service) Sessions() []session.Info {
	live := s.registry.ListAll()
	infos := make([]session.Info, 0, len(live))
	for _, sess := range live {
		infos = append(infos, sess.Info())
	}
	return infos
}

// PendingSecondFactor snapshots the suspended sessions awaiting a code.
func (s *Service) PendingSecondFactor() []session.Pending {
	return s.registry.ListPending()
}

// Screenshot captures the current page of a live session.
func (s *Service) Screenshot(sessionID string) ([]byte, error) {
	sess := s.registry.Get(sessionID)
	if sess == nil {
		return nil, session.ErrSessionNotFound
	}
	return sess.Page().Screenshot()
}

// DeleteAccountData removes everything held for an identity: the cookie
// file, the storage snapshot and the persistent browser cache. Returns
// how many of those existed and were removed (0 to 3).
func (s *Service) DeleteAccountData(identity string) (int, error) {
	removed, err := s.store.Delete(identity)
	if err != nil {
		return removed, err
	}
	cacheRemoved, err := s.caches.Delete(identity)
	if err != nil {
		return removed, err
	}
	if cacheRemoved {
		removed++
	}
	L_info("service: account data deleted", "identity", identity, "removed", removed)
	return removed, nil
}

// PurgeExpiredArtifacts deletes artifact bundles older than the
// configured retention window. Safe to run repeatedly.
func (s *Service) PurgeExpiredArtifacts() (int, error) {
	return s.store.PurgeOlderThan(s.store.Retention())
}

// Identities lists every identity with artifacts on disk.
func (s *Service) Identities() ([]string, error) {
	return s.store.Identities()
}

// Caches lists the persistent browser cache directories.
func (s *Service) Caches() ([]browser.CacheInfo, error) {
	return s.caches.List()
}

// Shutdown terminates every live session.
func (s *Service) Shutdown() {
	s.machine.CloseAll()
}
