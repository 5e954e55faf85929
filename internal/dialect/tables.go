package dialect

// Tables holds the ordered locator and marker lists for one dialect.
// They are data, not code: the classifier and the login machine probe the
// entries in order and take the first visible match, so upstream UI churn
// is absorbed by editing these lists (or an override file, see Load).
type Tables struct {
	// LoginURL is the entry point of this dialect's login flow.
	LoginURL string `yaml:"loginUrl"`

	// Device is the browser emulation profile name (see browser.ResolveDevice).
	Device string `yaml:"device"`

	// URLMarkers classify a loaded page as belonging to this dialect.
	URLMarkers []string `yaml:"urlMarkers"`
	// MarkerElements are selectors only present in this dialect's markup.
	MarkerElements []string `yaml:"markerElements"`

	// Credential entry.
	IdentityFields []string `yaml:"identityFields"`
	SecretFields   []string `yaml:"secretFields"`
	SubmitButtons  []string `yaml:"submitButtons"`

	// Second-factor entry.
	CodeFields        []string `yaml:"codeFields"`
	CodeSubmitButtons []string `yaml:"codeSubmitButtons"`

	// Second-factor detection: any visible field, any phrase in the
	// rendered text or raw markup, or any URL fragment means a code is
	// being asked for.
	SecondFactorFields    []string `yaml:"secondFactorFields"`
	SecondFactorPhrases   []string `yaml:"secondFactorPhrases"`
	CheckpointURLFragments []string `yaml:"checkpointUrlFragments"`

	// Success detection.
	SuccessURLPatterns []string `yaml:"successUrlPatterns"`
	LoggedInMarkers    []string `yaml:"loggedInMarkers"`

	// Post-success interstitials ("save your login info", "trust this
	// device"): count as success but need a dismissal click.
	InterstitialPhrases []string `yaml:"interstitialPhrases"`
	DismissButtons      []string `yaml:"dismissButtons"`
}

// Set maps each dialect to its tables.
type Set map[Dialect]Tables

// Defaults returns the built-in tables for both dialects.
// The phrase lists were collected empirically against the live site; they
// include the primary locale plus English fallbacks.
func Defaults(baseURL string) Set {
	if baseURL == "" {
		baseURL = "https://www.example-site.com"
	}

	secondFactorFields := []string{
		"input[name='verificationCode']",
		"input[name='verification_code']",
		"input[autocomplete='one-time-code']",
		"input[aria-label*='code' i]",
	}
	secondFactorPhrases := []string{
		"Enter the code",
		"verification code",
		"two-factor authentication",
		"security code",
		"check your phone",
	}
	checkpointFragments := []string{
		"/two_factor",
		"/twofactor",
		"/challenge",
		"/checkpoint",
		"/auth_platform/codeentry",
	}
	interstitialPhrases := []string{
		"Save your login info",
		"Save Your Login Info",
		"Trust this device",
		"Remember this browser",
		"Turn on Notifications",
	}

	return Set{
		Mobile: {
			LoginURL: baseURL + "/accounts/login/",
			Device:   "iphone-x",
			URLMarkers: []string{
				"//m.",
				"mobile",
			},
			MarkerElements: []string{
				"div[data-mobile-nav]",
				"nav[role='navigation'][data-compact]",
			},
			IdentityFields: []string{
				"input[name='username']",
				"input[name='email']",
				"input[aria-label='Phone number, username, or email']",
				"input[autocomplete='username']",
			},
			SecretFields: []string{
				"input[name='password']",
				"input[type='password']",
			},
			SubmitButtons: []string{
				"button[type='submit']",
				"button[data-testid='login-button']",
				"div[role='button'][tabindex='0']",
			},
			CodeFields:             secondFactorFields,
			CodeSubmitButtons:      []string{"button[type='button']", "button[type='submit']", "div[role='button']"},
			SecondFactorFields:     secondFactorFields,
			SecondFactorPhrases:    secondFactorPhrases,
			CheckpointURLFragments: checkpointFragments,
			SuccessURLPatterns: []string{
				"/home",
				"/feed",
				"/?next=",
			},
			LoggedInMarkers: []string{
				"svg[aria-label='Home']",
				"a[href='/direct/inbox/']",
			},
			InterstitialPhrases: interstitialPhrases,
			DismissButtons: []string{
				"button:not([type='submit'])",
				"div[role='button']",
				"button[tabindex='0']",
			},
		},
		Desktop: {
			LoginURL: baseURL + "/accounts/login/",
			Device:   "clear",
			URLMarkers: []string{
				"www.",
			},
			MarkerElements: []string{
				"nav[role='navigation'] img",
				"section main article",
			},
			IdentityFields: []string{
				"input[name='username']",
				"input[name='email']",
				"input[autocomplete='username']",
			},
			SecretFields: []string{
				"input[name='password']",
				"input[type='password']",
			},
			SubmitButtons: []string{
				"button[type='submit']",
				"form button",
			},
			CodeFields:             secondFactorFields,
			CodeSubmitButtons:      []string{"button[type='button']", "button[type='submit']"},
			SecondFactorFields:     secondFactorFields,
			SecondFactorPhrases:    secondFactorPhrases,
			CheckpointURLFragments: checkpointFragments,
			SuccessURLPatterns: []string{
				"/home",
				"/feed",
			},
			LoggedInMarkers: []string{
				"svg[aria-label='Home']",
				"span[aria-describedby]",
			},
			InterstitialPhrases: interstitialPhrases,
			DismissButtons: []string{
				"button:not([type='submit'])",
				"div[role='button']",
			},
		},
	}
}

// Get returns the tables for a dialect, falling back to mobile if the
// dialect is unknown.
func (s Set) Get(d Dialect) Tables {
	if t, ok := s[d]; ok {
		return t
	}
	return s[Mobile]
}
