// Package dialect describes the two device-profile variants of the target
// site's login UI and the declarative locator/marker tables for each.
package dialect

import "fmt"

// Dialect identifies a device-profile variant of the login UI.
type Dialect string

const (
	Mobile  Dialect = "mobile"
	Desktop Dialect = "desktop"
)

// Choice is a caller-supplied dialect selection.
type Choice string

const (
	ChoiceAuto    Choice = "auto"
	ChoiceMobile  Choice = "mobile"
	ChoiceDesktop Choice = "desktop"
)

// ParseChoice validates a dialect choice string. Empty means auto.
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "", "auto":
		return ChoiceAuto, nil
	case "mobile":
		return ChoiceMobile, nil
	case "desktop":
		return ChoiceDesktop, nil
	default:
		return "", fmt.Errorf("unknown dialect choice: %q", s)
	}
}

// Order returns the dialects to attempt for a choice, in order.
// Auto tries mobile first, desktop as fallback.
func (c Choice) Order() []Dialect {
	switch c {
	case ChoiceMobile:
		return []Dialect{Mobile}
	case ChoiceDesktop:
		return []Dialect{Desktop}
	default:
		return []Dialect{Mobile, Desktop}
	}
}
