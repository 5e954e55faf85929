// Package browsertest provides in-memory fakes of the browser
// interfaces so the login machinery can be tested without a real
// browser process.
package browsertest

import (
	"fmt"
	"sync"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
)

// FakeElement is a scriptable DOM element.
type FakeElement struct {
	VisibleVal bool
	EnabledVal bool
	TextVal    string

	ClickErr error
	InputErr error

	// OnClick runs after a successful click, letting a test mutate the
	// page in response (navigation, new elements appearing).
	OnClick func()

	Clicks int
	Inputs []string
}

func NewVisibleElement() *FakeElement {
	return &FakeElement{VisibleVal: true, EnabledVal: true}
}

func (e *FakeElement) Visible() (bool, error) { return e.VisibleVal, nil }
func (e *FakeElement) Enabled() (bool, error) { return e.EnabledVal, nil }
func (e *FakeElement) Text() (string, error)  { return e.TextVal, nil }

func (e *FakeElement) Click() error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *FakeElement) Input(text string, perKeyDelay time.Duration) error {
	if e.InputErr != nil {
		return e.InputErr
	}
	e.Inputs = append(e.Inputs, text)
	return nil
}

// FakePage is a scriptable tab. Tests mutate its fields (usually from an
// element's OnClick hook) to simulate page transitions.
type FakePage struct {
	mu sync.Mutex

	URLVal  string
	HTMLVal string
	TextVal string

	// Elements maps selectors to elements currently "on the page".
	Elements map[string]*FakeElement

	CookieList  []artifacts.Cookie
	Local       map[string]string
	SessionData map[string]string

	ScreenshotVal []byte
	NavigateErr   error

	// OnNavigate runs after every successful navigation.
	OnNavigate func(url string)

	Navigations []string
	Closed      bool
}

func NewFakePage() *FakePage {
	return &FakePage{
		Elements:    map[string]*FakeElement{},
		Local:       map[string]string{},
		SessionData: map[string]string{},
	}
}

// SetElement places an element on the page under a selector.
func (p *FakePage) SetElement(selector string, el *FakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elements[selector] = el
}

// Clear removes every element from the page.
func (p *FakePage) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elements = map[string]*FakeElement{}
}

func (p *FakePage) Navigate(url string) error {
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	p.URLVal = url
	p.Navigations = append(p.Navigations, url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URLVal
}

func (p *FakePage) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTMLVal, nil
}

func (p *FakePage) VisibleText() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TextVal, nil
}

func (p *FakePage) Element(selector string, timeout time.Duration) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.Elements[selector]; ok {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
}

func (p *FakePage) Cookies() ([]artifacts.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]artifacts.Cookie{}, p.CookieList...), nil
}

func (p *FakePage) storage(scope browser.StorageScope) map[string]string {
	if scope == browser.SessionStorage {
		return p.SessionData
	}
	return p.Local
}

func (p *FakePage) ReadStorage(scope browser.StorageScope) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]string{}
	for k, v := range p.storage(scope) {
		out[k] = v
	}
	return out, nil
}

func (p *FakePage) WriteStorage(scope browser.StorageScope, items map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dst := p.storage(scope)
	for k, v := range items {
		dst[k] = v
	}
	return nil
}

func (p *FakePage) Screenshot() ([]byte, error) {
	return p.ScreenshotVal, nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// FakeBrowser is one fake browser instance.
type FakeBrowser struct {
	PageVal *FakePage

	NewPageErr    error
	SetCookiesErr error

	CookiesSet [][]artifacts.Cookie
	Closed     bool
}

func NewFakeBrowser(page *FakePage) *FakeBrowser {
	if page == nil {
		page = NewFakePage()
	}
	return &FakeBrowser{PageVal: page}
}

func (b *FakeBrowser) NewPage() (browser.Page, error) {
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	return b.PageVal, nil
}

func (b *FakeBrowser) SetCookies(cookies []artifacts.Cookie) error {
	if b.SetCookiesErr != nil {
		return b.SetCookiesErr
	}
	b.CookiesSet = append(b.CookiesSet, cookies)
	return nil
}

func (b *FakeBrowser) Close() error {
	b.Closed = true
	return nil
}

// FakeLauncher hands out fake browsers and records every launch.
type FakeLauncher struct {
	mu sync.Mutex

	// Next builds the browser for each launch. Defaults to a fresh
	// empty browser per call.
	Next func(persistent bool, cacheDir, device string) *FakeBrowser

	LaunchErr error

	Launches           int
	PersistentLaunches int
	CacheDirs          []string
	Devices            []string
	Browsers           []*FakeBrowser
}

func (l *FakeLauncher) launch(persistent bool, cacheDir, device string) (browser.Browser, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var b *FakeBrowser
	if l.Next != nil {
		b = l.Next(persistent, cacheDir, device)
	} else {
		b = NewFakeBrowser(nil)
	}

	l.Launches++
	if persistent {
		l.PersistentLaunches++
		l.CacheDirs = append(l.CacheDirs, cacheDir)
	}
	l.Devices = append(l.Devices, device)
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

func (l *FakeLauncher) Launch(device string) (browser.Browser, error) {
	return l.launch(false, "", device)
}

func (l *FakeLauncher) LaunchPersistent(cacheDir, device string) (browser.Browser, error) {
	return l.launch(true, cacheDir, device)
}
