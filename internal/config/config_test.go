package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Data.RetentionHours != 168 {
		t.Errorf("default retention = %d hours", cfg.Data.RetentionHours)
	}
	if !cfg.Browser.Headless || !cfg.Browser.Stealth || !cfg.Browser.AutoDownload {
		t.Error("browser defaults should enable headless, stealth and auto-download")
	}
	if cfg.HTTP.Listen != "127.0.0.1:8743" {
		t.Errorf("default listen = %q", cfg.HTTP.Listen)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relogin.toml")
	toml := `
[site]
baseUrl = "https://www.other-site.example"

[browser]
headless = false
typeDelayMs = 150

[session]
secondFactorTimeout = "10m"
`
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Site.BaseURL != "https://www.other-site.example" {
		t.Errorf("baseUrl not applied: %q", cfg.Site.BaseURL)
	}
	if cfg.TypeDelay() != 150*time.Millisecond {
		t.Errorf("typeDelayMs not applied: %v", cfg.TypeDelay())
	}
	if cfg.SecondFactorTimeout() != 10*time.Minute {
		t.Errorf("secondFactorTimeout not applied: %v", cfg.SecondFactorTimeout())
	}

	// Untouched sections keep their defaults.
	if cfg.HTTP.Listen != "127.0.0.1:8743" {
		t.Errorf("listen should stay default, got %q", cfg.HTTP.Listen)
	}
	if cfg.Retention() != 168*time.Hour {
		t.Errorf("retention should stay default, got %v", cfg.Retention())
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Data.RetentionHours != 168 {
		t.Error("missing file should yield defaults")
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Defaults()
	cfg.Session.ProbeTimeout = "not a duration"
	if cfg.ProbeTimeout() != 2*time.Second {
		t.Errorf("bad duration should fall back, got %v", cfg.ProbeTimeout())
	}

	cfg.Session.ProbeTimeout = ""
	if cfg.ProbeTimeout() != 2*time.Second {
		t.Errorf("empty duration should fall back, got %v", cfg.ProbeTimeout())
	}
}

func TestResolveDirs(t *testing.T) {
	cfg := Defaults()
	cfg.Data.Dir = "/srv/relogin"

	if got := cfg.ResolveArtifactsDir(); got != "/srv/relogin/artifacts" {
		t.Errorf("artifacts dir = %q", got)
	}
	if got := cfg.ResolveCacheDir(); got != "/srv/relogin/cache" {
		t.Errorf("cache dir = %q", got)
	}
	if got := cfg.ResolveBinDir(); got != "/srv/relogin/bin" {
		t.Errorf("bin dir = %q", got)
	}
}
