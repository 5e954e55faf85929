package browser

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
	. "github.com/bvisser/relogin/internal/logging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Options controls how the rod driver launches browsers.
type Options struct {
	BinDir       string
	AutoDownload bool
	Headless     bool
	NoSandbox    bool
	Stealth      bool
	PageTimeout  time.Duration // default per-action timeout
}

// Driver is the rod-backed Launcher used in production.
type Driver struct {
	opts       Options
	downloader *Downloader
}

// NewDriver creates a rod driver.
func NewDriver(opts Options) *Driver {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	return &Driver{
		opts:       opts,
		downloader: NewDownloader(opts.BinDir),
	}
}

// cleanupStaleLocks removes Chrome lock files left behind by crashed
// sessions. Chrome refuses to start while they exist.
func cleanupStaleLocks(cacheDir string) {
	for _, lockFile := range []string{"SingletonLock", "SingletonCookie", "SingletonSocket"} {
		lockPath := filepath.Join(cacheDir, lockFile)
		if _, err := os.Stat(lockPath); err == nil {
			if err := os.Remove(lockPath); err != nil {
				L_warn("browser: failed to remove stale lock file", "file", lockPath, "error", err)
			} else {
				L_info("browser: removed stale lock file", "file", lockPath)
			}
		}
	}
}

func (d *Driver) binPath() (string, error) {
	if d.opts.AutoDownload {
		return d.downloader.EnsureBrowser()
	}
	return d.downloader.FindExistingBrowser()
}

func (d *Driver) launch(cacheDir, device string) (Browser, error) {
	binPath, err := d.binPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve browser binary: %w", err)
	}

	l := launcher.New().
		Bin(binPath).
		Headless(d.opts.Headless).
		Set("disable-dev-shm-usage") // for Docker/limited memory

	persistent := cacheDir != ""
	if persistent {
		if err := os.MkdirAll(cacheDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		cleanupStaleLocks(cacheDir)
		l = l.UserDataDir(cacheDir)
	}

	if d.opts.Stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	if d.opts.NoSandbox {
		l = l.Set("no-sandbox")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.DefaultDevice(ResolveDevice(device))

	L_debug("browser: launched", "device", device, "persistent", persistent, "headless", d.opts.Headless)

	return &rodBrowser{
		browser:    b,
		launcher:   l,
		stealth:    d.opts.Stealth,
		persistent: persistent,
		timeout:    d.opts.PageTimeout,
	}, nil
}

// Launch starts a fresh browser with a throwaway profile.
func (d *Driver) Launch(device string) (Browser, error) {
	return d.launch("", device)
}

// LaunchPersistent starts a browser bound to cacheDir.
func (d *Driver) LaunchPersistent(cacheDir, device string) (Browser, error) {
	return d.launch(cacheDir, device)
}

type rodBrowser struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	stealth    bool
	persistent bool
	timeout    time.Duration
}

func (b *rodBrowser) NewPage() (Page, error) {
	var page *rod.Page
	var err error
	if b.stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &rodPage{page: page, timeout: b.timeout}, nil
}

func (b *rodBrowser) SetCookies(cookies []artifacts.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	if err := b.browser.SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if !b.persistent {
		// Throwaway profile: let the launcher delete its temp dir.
		b.launcher.Cleanup()
	}
	return err
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) Navigate(url string) error {
	page := p.page.Timeout(p.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		L_warn("browser: WaitLoad timeout", "url", url)
	}
	// Bounded stabilization wait; slow pages proceed anyway.
	stable := p.page.Timeout(3 * time.Second)
	if err := stable.WaitStable(500 * time.Millisecond); err != nil {
		L_debug("browser: page did not stabilize", "url", url)
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML() (string, error) {
	return p.page.Timeout(p.timeout).HTML()
}

func (p *rodPage) VisibleText() (string, error) {
	body, err := p.page.Timeout(p.timeout).Element("body")
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return body.Text()
}

func (p *rodPage) Element(selector string, timeout time.Duration) (Element, error) {
	el, err := p.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (p *rodPage) Cookies() ([]artifacts.Cookie, error) {
	rodCookies, err := p.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]artifacts.Cookie, 0, len(rodCookies))
	for _, c := range rodCookies {
		cookies = append(cookies, artifacts.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func storageObject(scope StorageScope) string {
	if scope == SessionStorage {
		return "sessionStorage"
	}
	return "localStorage"
}

func (p *rodPage) ReadStorage(scope StorageScope) (map[string]string, error) {
	js := fmt.Sprintf(`() => {
		const s = %s;
		const out = {};
		for (let i = 0; i < s.length; i++) {
			const k = s.key(i);
			out[k] = s.getItem(k);
		}
		return out;
	}`, storageObject(scope))

	res, err := p.page.Timeout(p.timeout).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", storageObject(scope), err)
	}

	items := make(map[string]string)
	for k, v := range res.Value.Map() {
		items[k] = v.Str()
	}
	return items, nil
}

func (p *rodPage) WriteStorage(scope StorageScope, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	js := fmt.Sprintf(`(items) => {
		const s = %s;
		for (const k in items) {
			s.setItem(k, items[k]);
		}
	}`, storageObject(scope))

	if _, err := p.page.Timeout(p.timeout).Eval(js, items); err != nil {
		return fmt.Errorf("failed to write %s: %w", storageObject(scope), err)
	}
	return nil
}

func (p *rodPage) Screenshot() ([]byte, error) {
	return p.page.Timeout(p.timeout).Screenshot(false, nil)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *rodElement) Enabled() (bool, error) {
	if attr, err := e.el.Attribute("disabled"); err == nil && attr != nil {
		return false, nil
	}
	if attr, err := e.el.Attribute("aria-disabled"); err == nil && attr != nil && *attr == "true" {
		return false, nil
	}
	if attr, err := e.el.Attribute("aria-busy"); err == nil && attr != nil && *attr == "true" {
		return false, nil
	}
	return true, nil
}

func (e *rodElement) Click() error {
	if err := e.el.ScrollIntoView(); err != nil {
		L_warn("browser: failed to scroll into view", "error", err)
	}
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (e *rodElement) Input(text string, perKeyDelay time.Duration) error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}

	if perKeyDelay <= 0 {
		if err := e.el.Input(text); err != nil {
			return fmt.Errorf("input failed: %w", err)
		}
		return nil
	}

	// Human-paced entry: one character at a time with jittered delays.
	for _, r := range text {
		if err := e.el.Input(string(r)); err != nil {
			return fmt.Errorf("input failed: %w", err)
		}
		jitter := time.Duration(rand.Int63n(int64(perKeyDelay)/2 + 1))
		time.Sleep(perKeyDelay/2 + jitter)
	}
	return nil
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}
