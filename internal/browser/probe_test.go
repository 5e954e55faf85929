package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
)

type stubElement struct {
	visible bool
	enabled bool
}

func (e *stubElement) Visible() (bool, error)            { return e.visible, nil }
func (e *stubElement) Enabled() (bool, error)            { return e.enabled, nil }
func (e *stubElement) Click() error                      { return nil }
func (e *stubElement) Input(string, time.Duration) error { return nil }
func (e *stubElement) Text() (string, error)             { return "", nil }

type stubPage struct {
	elements map[string]*stubElement
	probed   []string
}

func (p *stubPage) Navigate(string) error        { return nil }
func (p *stubPage) URL() string                  { return "" }
func (p *stubPage) HTML() (string, error)        { return "", nil }
func (p *stubPage) VisibleText() (string, error) { return "", nil }

func (p *stubPage) Element(selector string, _ time.Duration) (Element, error) {
	p.probed = append(p.probed, selector)
	if el, ok := p.elements[selector]; ok {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
}

func (p *stubPage) Cookies() ([]artifacts.Cookie, error)                { return nil, nil }
func (p *stubPage) ReadStorage(StorageScope) (map[string]string, error) { return nil, nil }
func (p *stubPage) WriteStorage(StorageScope, map[string]string) error  { return nil }
func (p *stubPage) Screenshot() ([]byte, error)                         { return nil, nil }
func (p *stubPage) Close() error                                        { return nil }

func TestLocateFirstVisible(t *testing.T) {
	page := &stubPage{elements: map[string]*stubElement{
		"#hidden":  {visible: false},
		"#visible": {visible: true},
	}}

	el, err := LocateFirstVisible(page, []string{"#absent", "#hidden", "#visible"}, time.Millisecond)
	if err != nil {
		t.Fatalf("LocateFirstVisible failed: %v", err)
	}
	if el != page.elements["#visible"] {
		t.Error("wrong element returned")
	}
	if len(page.probed) != 3 {
		t.Errorf("expected 3 probes, got %v", page.probed)
	}
}

func TestLocateFirstVisibleOrder(t *testing.T) {
	page := &stubPage{elements: map[string]*stubElement{
		"#first":  {visible: true},
		"#second": {visible: true},
	}}

	el, err := LocateFirstVisible(page, []string{"#first", "#second"}, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if el != page.elements["#first"] {
		t.Error("probing should stop at the first visible match")
	}
	if len(page.probed) != 1 {
		t.Errorf("expected 1 probe, got %v", page.probed)
	}
}

func TestLocateFirstVisibleExhausted(t *testing.T) {
	page := &stubPage{elements: map[string]*stubElement{}}

	_, err := LocateFirstVisible(page, []string{"#a", "#b"}, time.Millisecond)
	if !errors.Is(err, ErrElementNotFound) {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}
}

func TestWaitEnabled(t *testing.T) {
	el := &stubElement{visible: true, enabled: true}
	if err := WaitEnabled(el, time.Second); err != nil {
		t.Errorf("WaitEnabled on an enabled element failed: %v", err)
	}
}

func TestWaitEnabledTimeout(t *testing.T) {
	el := &stubElement{visible: true, enabled: false}
	if err := WaitEnabled(el, 150*time.Millisecond); err == nil {
		t.Error("WaitEnabled should time out on a busy element")
	}
}
