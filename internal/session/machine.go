package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/classify"
	"github.com/bvisser/relogin/internal/dialect"
	. "github.com/bvisser/relogin/internal/logging"
)

// AttemptOutcome is the result kind of one login attempt.
type AttemptOutcome string

const (
	OutcomeSuccess      AttemptOutcome = "success"
	OutcomeSecondFactor AttemptOutcome = "second-factor-required"
	OutcomeFailure      AttemptOutcome = "failure"
)

// AttemptResult is what one state machine run returns. A second-factor
// suspension is a result, not an error: the session id travels as data.
type AttemptResult struct {
	Outcome   AttemptOutcome
	SessionID string
	Dialect   dialect.Dialect
	Err       error // set when Outcome is OutcomeFailure
}

// ResumeOutcome is the result kind of a second-factor submission.
type ResumeOutcome string

const (
	ResumeSuccess      ResumeOutcome = "success"
	ResumeStillPending ResumeOutcome = "still-pending"
	ResumeFailure      ResumeOutcome = "failure"
	ResumeNotFound     ResumeOutcome = "not-found"
)

// ResumeResult is what SubmitSecondFactor returns.
type ResumeResult struct {
	Outcome ResumeOutcome
	Err     error
}

// Options are the timing knobs of the machine.
type Options struct {
	ProbeTimeout        time.Duration // per-selector visibility wait
	SubmitWait          time.Duration // wait for submit control to leave busy state
	SettleDelay         time.Duration // deliberate inter-step delay
	TypeDelay           time.Duration // per-character typing delay
	SecondFactorTimeout time.Duration // suspended session teardown
}

func (o Options) withDefaults() Options {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 2 * time.Second
	}
	if o.SubmitWait <= 0 {
		o.SubmitWait = 10 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = time.Second
	}
	if o.SecondFactorTimeout <= 0 {
		o.SecondFactorTimeout = 30 * time.Minute
	}
	return o
}

// Machine drives login attempts end to end: navigate, fill, submit,
// classify, suspend for second-factor input, resume, persist artifacts.
// All fields are injected so the machine can run against fakes.
type Machine struct {
	launcher   browser.Launcher
	caches     *browser.CacheManager
	store      *artifacts.Store
	classifier *classify.Classifier
	tables     *dialect.Provider
	registry   *Registry
	opts       Options
}

// NewMachine wires a machine from its collaborators.
func NewMachine(
	launcher browser.Launcher,
	caches *browser.CacheManager,
	store *artifacts.Store,
	classifier *classify.Classifier,
	tables *dialect.Provider,
	registry *Registry,
	opts Options,
) *Machine {
	return &Machine{
		launcher:   launcher,
		caches:     caches,
		store:      store,
		classifier: classifier,
		tables:     tables,
		registry:   registry,
		opts:       opts.withDefaults(),
	}
}

// Login runs a full credential login for one dialect. On success the
// browser is left running and the session stays registered; the caller
// may keep interacting with the live page. A second-factor prompt
// suspends the session and returns its id.
func (m *Machine) Login(identity, secret string, d dialect.Dialect) AttemptResult {
	t := m.tables.Tables(d)

	b, err := m.launcher.Launch(t.Device)
	if err != nil {
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	s := newSession(identity, d, ModeFull, b, page, "")
	m.registry.Register(s)

	L_info("session: full login starting", "id", s.ID, "identity", identity, "dialect", d)

	if err := page.Navigate(t.LoginURL); err != nil {
		return m.fail(s, err)
	}
	time.Sleep(m.opts.SettleDelay)

	// The page may serve either variant regardless of which we asked
	// for; probe with the tables of whatever actually loaded.
	effective := m.classifier.DetectDialect(page)
	if effective != d {
		L_debug("session: page variant differs from requested dialect", "requested", d, "detected", effective)
	}
	et := m.tables.Tables(effective)

	if err := m.fillCredentials(page, et, identity, secret); err != nil {
		return m.fail(s, err)
	}

	if err := m.submit(page, et.SubmitButtons); err != nil {
		return m.fail(s, err)
	}

	return m.concludeAttempt(s, effective)
}

// QuickLogin attempts re-entry using persisted artifacts only. Requires
// a non-expired bundle; without one it fails with artifacts.ErrNoArtifacts
// before any browser is launched. It never types credentials.
func (m *Machine) QuickLogin(identity string, d dialect.Dialect) AttemptResult {
	bundle, err := m.store.Read(identity)
	if err != nil {
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	t := m.tables.Tables(d)

	cacheDir, err := m.caches.Ensure(identity, string(d))
	if err != nil {
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	b, err := m.launcher.LaunchPersistent(cacheDir, t.Device)
	if err != nil {
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	if err := b.SetCookies(bundle.Cookies); err != nil {
		b.Close()
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return AttemptResult{Outcome: OutcomeFailure, Dialect: d, Err: err}
	}

	s := newSession(identity, d, ModeQuick, b, page, cacheDir)
	m.registry.Register(s)

	L_info("session: quick login starting", "id", s.ID, "identity", identity, "dialect", d)

	if err := page.Navigate(t.LoginURL); err != nil {
		return m.fail(s, fmt.Errorf("%w: %v", ErrQuickLoginFailed, err))
	}

	// Storage is origin-scoped, so it can only be restored once a page
	// of the target origin is open; reload to let scripts pick it up.
	if len(bundle.LocalStorage) > 0 || len(bundle.SessionStorage) > 0 {
		if err := page.WriteStorage(browser.LocalStorage, bundle.LocalStorage); err != nil {
			L_warn("session: failed to restore local storage", "id", s.ID, "error", err)
		}
		if err := page.WriteStorage(browser.SessionStorage, bundle.SessionStorage); err != nil {
			L_warn("session: failed to restore session storage", "id", s.ID, "error", err)
		}
		if err := page.Navigate(t.LoginURL); err != nil {
			return m.fail(s, fmt.Errorf("%w: %v", ErrQuickLoginFailed, err))
		}
	}
	time.Sleep(m.opts.SettleDelay)

	result := m.classifier.LoginSucceeded(page, d)
	if !result.LoggedIn {
		// Not logged in, for whatever reason. Prior artifacts stay on
		// disk: an unsuccessful restore must not clobber a valid bundle.
		return m.fail(s, ErrQuickLoginFailed)
	}

	if result.Interstitial {
		m.dismissInterstitial(page, t)
	}

	if err := m.persistArtifacts(s); err != nil {
		L_warn("session: failed to refresh artifacts", "id", s.ID, "error", err)
	}

	s.setState(StateCompleted)
	L_info("session: quick login succeeded", "id", s.ID)
	return AttemptResult{Outcome: OutcomeSuccess, SessionID: s.ID, Dialect: d}
}

// SubmitSecondFactor resumes a suspended session with a verification
// code. A wrong code leaves the session suspended for another try; a
// missing session id (already resumed, cancelled or timed out) returns
// ResumeNotFound with no side effects.
func (m *Machine) SubmitSecondFactor(sessionID, code string) ResumeResult {
	if _, ok := m.registry.TakePending(sessionID); !ok {
		return ResumeResult{Outcome: ResumeNotFound, Err: ErrSessionNotFound}
	}

	s := m.registry.Get(sessionID)
	if s == nil {
		// Pending without a session should not happen; nothing to resume.
		L_warn("session: pending record without session", "id", sessionID)
		return ResumeResult{Outcome: ResumeNotFound, Err: ErrSessionNotFound}
	}

	s.setState(StateRunning)
	L_info("session: resuming with second factor", "id", sessionID)

	t := m.tables.Tables(s.Dialect)
	page := s.page

	codeField, err := browser.LocateFirstVisible(page, t.CodeFields, m.opts.ProbeTimeout)
	if err != nil {
		// The code-entry UI is gone; the suspended page is unusable.
		m.teardown(s, StateFailed)
		return ResumeResult{Outcome: ResumeFailure, Err: err}
	}

	if err := codeField.Input(code, m.opts.TypeDelay); err != nil {
		m.teardown(s, StateFailed)
		return ResumeResult{Outcome: ResumeFailure, Err: err}
	}

	if err := m.submit(page, t.CodeSubmitButtons); err != nil {
		m.teardown(s, StateFailed)
		return ResumeResult{Outcome: ResumeFailure, Err: err}
	}

	switch result := m.concludeAttempt(s, s.Dialect); result.Outcome {
	case OutcomeSuccess:
		return ResumeResult{Outcome: ResumeSuccess}
	case OutcomeSecondFactor:
		// Wrong code: the session is suspended again (concludeAttempt
		// re-added the pending record) so the caller can retry.
		return ResumeResult{Outcome: ResumeStillPending}
	default:
		return ResumeResult{Outcome: ResumeFailure, Err: result.Err}
	}
}

// Cancel removes a pending second-factor record and forcibly closes the
// associated session. Returns false if no such pending session exists,
// including when a racing resume won the record first.
func (m *Machine) Cancel(sessionID string) bool {
	_, ok := m.registry.TakePending(sessionID)
	if !ok {
		return false
	}
	if s := m.registry.Get(sessionID); s != nil {
		m.teardown(s, StateClosed)
	}
	L_info("session: second factor cancelled", "id", sessionID)
	return true
}

// Terminate closes a session's browser (persisting artifacts
// best-effort first) and removes it from the registry.
func (m *Machine) Terminate(sessionID string) bool {
	s := m.registry.Get(sessionID)
	if s == nil {
		return false
	}
	// Stop any pending timer and block racing resumes.
	m.registry.TakePending(sessionID)

	if s.State() == StateCompleted {
		if err := m.persistArtifacts(s); err != nil {
			L_debug("session: best-effort artifact persist failed", "id", sessionID, "error", err)
		}
	}
	m.teardown(s, StateClosed)
	L_info("session: terminated", "id", sessionID)
	return true
}

// CloseAll terminates every registered session. Used on shutdown.
func (m *Machine) CloseAll() {
	for _, s := range m.registry.ListAll() {
		m.Terminate(s.ID)
	}
}

// fillCredentials locates and fills the identity field, then the secret
// field, with deliberate pacing between the two.
func (m *Machine) fillCredentials(page browser.Page, t dialect.Tables, identity, secret string) error {
	identityField, err := browser.LocateFirstVisible(page, t.IdentityFields, m.opts.ProbeTimeout)
	if err != nil {
		return fmt.Errorf("identity field: %w", err)
	}
	if err := identityField.Input(identity, m.opts.TypeDelay); err != nil {
		return err
	}

	time.Sleep(m.opts.SettleDelay)

	secretField, err := browser.LocateFirstVisible(page, t.SecretFields, m.opts.ProbeTimeout)
	if err != nil {
		return fmt.Errorf("secret field: %w", err)
	}
	return secretField.Input(secret, m.opts.TypeDelay)
}

// submit locates the submit control, waits for it to leave its busy
// state and clicks it.
func (m *Machine) submit(page browser.Page, selectors []string) error {
	button, err := browser.LocateFirstVisible(page, selectors, m.opts.ProbeTimeout)
	if err != nil {
		return fmt.Errorf("submit control: %w", err)
	}
	if err := browser.WaitEnabled(button, m.opts.SubmitWait); err != nil {
		return err
	}
	return button.Click()
}

// concludeAttempt runs outcome classification on a fixed retry ladder
// (immediately, +1s, +2s after submit) to absorb network and render
// latency before concluding no second factor is present. The
// second-factor check always wins over the success check.
func (m *Machine) concludeAttempt(s *Session, d dialect.Dialect) AttemptResult {
	t := m.tables.Tables(d)

	for _, delay := range []time.Duration{0, time.Second, 2 * time.Second} {
		time.Sleep(delay)

		if m.classifier.RequiresSecondFactor(s.page, d) {
			return m.suspend(s)
		}

		result := m.classifier.LoginSucceeded(s.page, d)
		if !result.LoggedIn {
			continue
		}

		if result.Interstitial {
			m.dismissInterstitial(s.page, t)
		}
		if err := m.persistArtifacts(s); err != nil {
			L_warn("session: failed to persist artifacts", "id", s.ID, "error", err)
		}
		s.setState(StateCompleted)
		L_info("session: login succeeded", "id", s.ID, "dialect", d)
		return AttemptResult{Outcome: OutcomeSuccess, SessionID: s.ID, Dialect: s.Dialect}
	}

	return m.fail(s, ErrLoginFailed)
}

// suspend parks the session for out-of-band code entry. The browser and
// the session record both stay alive; only the pending record and its
// timeout timer are new.
func (m *Machine) suspend(s *Session) AttemptResult {
	s.setState(StateAwaitingSecondFactor)
	m.registry.AddPending(&Pending{
		SessionID:   s.ID,
		Identity:    s.Identity,
		Dialect:     s.Dialect,
		SuspendedAt: time.Now(),
	}, m.opts.SecondFactorTimeout, m.expirePending)

	L_info("session: awaiting second factor", "id", s.ID)
	return AttemptResult{Outcome: OutcomeSecondFactor, SessionID: s.ID, Dialect: s.Dialect}
}

// expirePending tears a suspended session down after the second-factor
// wait deadline. The registry guarantees it only runs when no resume or
// cancel won the pending record first.
func (m *Machine) expirePending(p *Pending) {
	L_warn("session: giving up on suspended session", "id", p.SessionID, "error", ErrSecondFactorTimeout)
	if s := m.registry.Get(p.SessionID); s != nil {
		m.teardown(s, StateFailed)
	}
}

// dismissInterstitial clicks through a "save login info" / "trust this
// device" dialog. Best effort: a missed dismissal leaves the page one
// click away from rest, not logged out.
func (m *Machine) dismissInterstitial(page browser.Page, t dialect.Tables) {
	button, err := browser.LocateFirstVisible(page, t.DismissButtons, m.opts.ProbeTimeout)
	if err != nil {
		L_debug("session: no dismiss control found for interstitial")
		return
	}
	if err := button.Click(); err != nil {
		L_debug("session: interstitial dismissal failed", "error", err)
		return
	}
	time.Sleep(m.opts.SettleDelay)
}

// persistArtifacts harvests cookies and storage from the live page and
// writes a fresh bundle. Write-after-success only: callers invoke this
// once the outcome is known good.
func (m *Machine) persistArtifacts(s *Session) error {
	cookies, err := s.page.Cookies()
	if err != nil {
		return fmt.Errorf("failed to harvest cookies: %w", err)
	}

	local, err := s.page.ReadStorage(browser.LocalStorage)
	if err != nil {
		L_debug("session: could not read local storage", "id", s.ID, "error", err)
	}
	sessionStorage, err := s.page.ReadStorage(browser.SessionStorage)
	if err != nil {
		L_debug("session: could not read session storage", "id", s.ID, "error", err)
	}

	return m.store.Write(&artifacts.Bundle{
		Identity:       s.Identity,
		CapturedAt:     time.Now(),
		Cookies:        cookies,
		LocalStorage:   local,
		SessionStorage: sessionStorage,
	})
}

// fail tears the session down and reports the failure with the
// underlying reason preserved.
func (m *Machine) fail(s *Session, err error) AttemptResult {
	if !errors.Is(err, ErrQuickLoginFailed) {
		L_warn("session: attempt failed", "id", s.ID, "error", err)
	}
	m.teardown(s, StateFailed)
	return AttemptResult{Outcome: OutcomeFailure, SessionID: s.ID, Dialect: s.Dialect, Err: err}
}

// teardown closes the browser and removes the session record. Safe to
// call more than once for the same session.
func (m *Machine) teardown(s *Session, state State) {
	s.setState(state)
	s.closeBrowser()
	m.registry.Remove(s.ID)
}
