package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheManagerEnsureAndDelete(t *testing.T) {
	m := NewCacheManager(t.TempDir())

	dir, err := m.Ensure("user@example.com", "mobile")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("cache dir not created: %v", err)
	}
	if filepath.Base(filepath.Dir(dir)) != "user%40example.com" {
		t.Errorf("cache dir should use the sanitized identity, got %s", dir)
	}

	removed, err := m.Delete("user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("Delete should report a removal")
	}

	removed, err = m.Delete("user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("second Delete should be a no-op")
	}
}

func TestCacheManagerList(t *testing.T) {
	m := NewCacheManager(t.TempDir())

	mobileDir, err := m.Ensure("user1", "mobile")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Ensure("user1", "desktop"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mobileDir, "Cookies"), []byte("xxxx"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 cache entries, got %d", len(infos))
	}

	var sawMobile bool
	for _, info := range infos {
		if info.Identity != "user1" {
			t.Errorf("unexpected identity %q", info.Identity)
		}
		if info.Variant == "mobile" {
			sawMobile = true
			if info.Size != 4 {
				t.Errorf("mobile cache size = %d, want 4", info.Size)
			}
		}
	}
	if !sawMobile {
		t.Error("mobile variant missing from listing")
	}
}

func TestCacheManagerListEmptyRoot(t *testing.T) {
	m := NewCacheManager(filepath.Join(t.TempDir(), "nothing-here"))
	infos, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("expected no entries, got %d", len(infos))
	}
}

func TestResolveDevice(t *testing.T) {
	if ResolveDevice("iphone-x").Title == "" {
		t.Error("iphone-x should resolve to a named device")
	}
	if !ResolveDevice("clear").IsClear() {
		t.Error("clear should resolve to the empty device")
	}
	if !ResolveDevice("no-such-device").IsClear() {
		t.Error("unknown names should fall back to clear")
	}
}
