package dialect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	set := Defaults("https://www.example-site.com")

	m := set.Get(Mobile)
	if m.LoginURL != "https://www.example-site.com/accounts/login/" {
		t.Errorf("mobile login URL = %q", m.LoginURL)
	}
	if m.Device != "iphone-x" {
		t.Errorf("mobile device = %q", m.Device)
	}
	if len(m.IdentityFields) == 0 || len(m.SecretFields) == 0 || len(m.SubmitButtons) == 0 {
		t.Error("mobile credential tables should not be empty")
	}

	d := set.Get(Desktop)
	if d.Device != "clear" {
		t.Errorf("desktop device = %q", d.Device)
	}
}

func TestSetGetFallsBackToMobile(t *testing.T) {
	set := Defaults("")
	if got := set.Get(Dialect("tablet")); got.Device != set.Get(Mobile).Device {
		t.Errorf("unknown dialect should fall back to mobile, got device %q", got.Device)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	yaml := `
mobile:
  loginUrl: https://www.example-site.com/login-alt/
  device: pixel-2
  identityFields:
    - "input[name='user']"
  secretFields:
    - "input[name='pass']"
  submitButtons:
    - "button.login"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	set, err := Load("https://www.example-site.com", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	m := set.Get(Mobile)
	if m.LoginURL != "https://www.example-site.com/login-alt/" {
		t.Errorf("override login URL not applied, got %q", m.LoginURL)
	}
	if m.Device != "pixel-2" {
		t.Errorf("override device not applied, got %q", m.Device)
	}
	if len(m.IdentityFields) != 1 || m.IdentityFields[0] != "input[name='user']" {
		t.Errorf("override identity fields not applied: %v", m.IdentityFields)
	}

	// Desktop was absent from the file and keeps its defaults.
	if set.Get(Desktop).Device != "clear" {
		t.Error("desktop tables should be untouched")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("https://www.example-site.com", "/does/not/exist.yaml"); err == nil {
		t.Error("Load with a missing override file should fail")
	}
}

func TestProviderTables(t *testing.T) {
	p, err := NewProvider("https://www.example-site.com", "")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.Tables(Mobile).Device != "iphone-x" {
		t.Error("provider should serve the default tables")
	}
}
