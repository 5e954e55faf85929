// Package browser wraps the browser-automation library behind small
// interfaces so the login machinery can be exercised against fakes.
package browser

import (
	"errors"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
)

// ErrElementNotFound is returned when no selector in a probe list matched
// a visible element within its budget.
var ErrElementNotFound = errors.New("element not found")

// StorageScope selects one of the page's two storage areas.
type StorageScope string

const (
	LocalStorage   StorageScope = "local"
	SessionStorage StorageScope = "session"
)

// Launcher starts browser instances.
type Launcher interface {
	// Launch starts a fresh browser with a throwaway profile.
	Launch(device string) (Browser, error)
	// LaunchPersistent starts a browser bound to a persistent cache
	// directory so cookies and caches survive across runs.
	LaunchPersistent(cacheDir, device string) (Browser, error)
}

// Browser is one running browser instance.
type Browser interface {
	NewPage() (Page, error)
	SetCookies(cookies []artifacts.Cookie) error
	Close() error
}

// Page is one open tab.
type Page interface {
	Navigate(url string) error
	// URL returns the current address, or "" if it cannot be read.
	URL() string
	HTML() (string, error)
	// VisibleText returns the rendered text of the page body.
	VisibleText() (string, error)
	// Element waits up to timeout for selector to match, then returns it.
	Element(selector string, timeout time.Duration) (Element, error)
	Cookies() ([]artifacts.Cookie, error)
	ReadStorage(scope StorageScope) (map[string]string, error)
	WriteStorage(scope StorageScope, items map[string]string) error
	Screenshot() ([]byte, error)
	Close() error
}

// Element is one located DOM element.
type Element interface {
	Visible() (bool, error)
	// Enabled reports whether the element accepts interaction (not
	// disabled, not aria-busy).
	Enabled() (bool, error)
	Click() error
	// Input types text into the element. A positive perKeyDelay types
	// character by character with that pacing.
	Input(text string, perKeyDelay time.Duration) error
	Text() (string, error)
}
