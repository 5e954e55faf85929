package browser

import (
	"fmt"
	"time"

	. "github.com/bvisser/relogin/internal/logging"
)

// LocateFirstVisible probes the selectors in order and returns the first
// one that matches a visible element, spending at most perProbeTimeout on
// each. A slow or absent selector costs one probe budget, never more.
// Returns ErrElementNotFound when the whole list is exhausted.
func LocateFirstVisible(page Page, selectors []string, perProbeTimeout time.Duration) (Element, error) {
	for _, selector := range selectors {
		el, err := page.Element(selector, perProbeTimeout)
		if err != nil {
			continue
		}
		visible, err := el.Visible()
		if err != nil || !visible {
			L_debug("browser: probe matched hidden element, continuing", "selector", selector)
			continue
		}
		return el, nil
	}
	return nil, fmt.Errorf("%w: none of %d selectors matched a visible element", ErrElementNotFound, len(selectors))
}

// WaitEnabled polls the element until it accepts interaction or the
// timeout elapses. Submit controls on the target site flip through a
// disabled/busy state while the form validates.
func WaitEnabled(el Element, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		enabled, err := el.Enabled()
		if err == nil && enabled {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("element still busy after %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
