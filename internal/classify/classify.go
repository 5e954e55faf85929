// Package classify inspects a loaded page and decides which UI variant
// it shows and how a login attempt turned out. Everything here is
// heuristic: ordered selector and phrase tables, probed with short
// per-selector budgets so one slow lookup never stalls a classification.
package classify

import (
	"strings"
	"time"

	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/dialect"
	. "github.com/bvisser/relogin/internal/logging"
)

// SuccessResult is the outcome of a LoginSucceeded check.
type SuccessResult struct {
	LoggedIn bool
	// Interstitial is set when the page is a "save your login info" /
	// "trust this device" screen: logged in, but a transient dialog must
	// be dismissed before the page reaches its resting state.
	Interstitial bool
}

// Classifier evaluates pages against the dialect tables.
type Classifier struct {
	tables       *dialect.Provider
	probeTimeout time.Duration
}

// New creates a classifier. probeTimeout bounds each individual selector
// probe.
func New(tables *dialect.Provider, probeTimeout time.Duration) *Classifier {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Classifier{tables: tables, probeTimeout: probeTimeout}
}

// DetectDialect classifies the current page as mobile or desktop, in
// order: URL substring match, then dialect marker elements. Defaults to
// mobile when neither matches; never fails.
func (c *Classifier) DetectDialect(page browser.Page) dialect.Dialect {
	url := page.URL()
	for _, d := range []dialect.Dialect{dialect.Mobile, dialect.Desktop} {
		for _, marker := range c.tables.Tables(d).URLMarkers {
			if marker != "" && strings.Contains(url, marker) {
				return d
			}
		}
	}

	for _, d := range []dialect.Dialect{dialect.Mobile, dialect.Desktop} {
		if c.anyVisible(page, c.tables.Tables(d).MarkerElements) {
			return d
		}
	}

	L_debug("classify: no dialect markers matched, defaulting to mobile", "url", url)
	return dialect.Mobile
}

// RequiresSecondFactor reports whether the page is asking for an
// out-of-band verification code. True if any known code-entry field is
// visible, any marker phrase appears in the rendered text or the raw
// markup, or the URL matches a checkpoint-style fragment. Safe to call
// repeatedly.
func (c *Classifier) RequiresSecondFactor(page browser.Page, d dialect.Dialect) bool {
	t := c.tables.Tables(d)

	if c.anyVisible(page, t.SecondFactorFields) {
		return true
	}

	// Some markers render inside elements the text walk cannot reach, so
	// the raw markup is searched as well.
	if c.anyPhrase(page, t.SecondFactorPhrases) {
		return true
	}

	url := page.URL()
	for _, fragment := range t.CheckpointURLFragments {
		if fragment != "" && strings.Contains(url, fragment) {
			return true
		}
	}
	return false
}

// LoginSucceeded reports whether the page shows a logged-in state. A
// page that still asks for a second factor is never a success, whatever
// else it matches: a code-entry page transiently satisfies loose success
// heuristics like "no password field present".
func (c *Classifier) LoginSucceeded(page browser.Page, d dialect.Dialect) SuccessResult {
	if c.RequiresSecondFactor(page, d) {
		return SuccessResult{}
	}

	t := c.tables.Tables(d)

	if c.anyPhrase(page, t.InterstitialPhrases) {
		return SuccessResult{LoggedIn: true, Interstitial: true}
	}

	url := page.URL()
	for _, pattern := range t.SuccessURLPatterns {
		if pattern != "" && strings.Contains(url, pattern) {
			return SuccessResult{LoggedIn: true}
		}
	}

	if c.anyVisible(page, t.LoggedInMarkers) {
		return SuccessResult{LoggedIn: true}
	}

	// Loosest heuristic last: a page with no credential entry left on it
	// is treated as logged in.
	credentialFields := append(append([]string{}, t.IdentityFields...), t.SecretFields...)
	if !c.anyVisible(page, credentialFields) {
		return SuccessResult{LoggedIn: true}
	}

	return SuccessResult{}
}

// anyVisible reports whether any selector matches a visible element,
// spending at most the probe timeout per selector.
func (c *Classifier) anyVisible(page browser.Page, selectors []string) bool {
	_, err := browser.LocateFirstVisible(page, selectors, c.probeTimeout)
	return err == nil
}

// anyPhrase looks for any of the phrases in the rendered body text, then
// in the raw markup.
func (c *Classifier) anyPhrase(page browser.Page, phrases []string) bool {
	if len(phrases) == 0 {
		return false
	}

	text, err := page.VisibleText()
	if err != nil {
		text = ""
	}
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}

	html, err := page.HTML()
	if err != nil {
		return false
	}
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(html, phrase) {
			return true
		}
	}
	return false
}
