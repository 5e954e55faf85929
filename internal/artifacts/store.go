// Package artifacts persists per-account authentication artifacts:
// a cookie bundle and a storage snapshot, both keyed by the sanitized
// account identity.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/bvisser/relogin/internal/logging"
)

// ErrNoArtifacts is returned when no usable (present, non-expired) bundle
// exists for an identity.
var ErrNoArtifacts = errors.New("no usable artifacts for account")

// Cookie is one persisted browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix seconds, -1 = session cookie
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Bundle is the full artifact set for one account.
type Bundle struct {
	Identity       string            `json:"identity"`
	CapturedAt     time.Time         `json:"capturedAt"`
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
}

// storageSnapshot is the on-disk shape of the storage half of a bundle.
type storageSnapshot struct {
	Identity       string            `json:"identity"`
	CapturedAt     time.Time         `json:"capturedAt"`
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
}

// cookieBundle is the on-disk shape of the cookie half of a bundle.
type cookieBundle struct {
	Identity   string    `json:"identity"`
	CapturedAt time.Time `json:"capturedAt"`
	Cookies    []Cookie  `json:"cookies"`
}

const (
	cookieSuffix  = ".cookies.json"
	storageSuffix = ".storage.json"
)

// Store reads and writes artifact bundles under a single directory.
type Store struct {
	dir       string
	retention time.Duration
}

// NewStore creates a store rooted at dir. Bundles older than retention
// are treated as absent by Read (but not deleted).
func NewStore(dir string, retention time.Duration) *Store {
	if retention <= 0 {
		retention = 168 * time.Hour
	}
	return &Store{dir: dir, retention: retention}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Retention returns the age past which bundles are considered expired.
func (s *Store) Retention() time.Duration {
	return s.retention
}

func (s *Store) cookiePath(identity string) string {
	return filepath.Join(s.dir, SanitizeIdentity(identity)+cookieSuffix)
}

func (s *Store) storagePath(identity string) string {
	return filepath.Join(s.dir, SanitizeIdentity(identity)+storageSuffix)
}

// Read loads the bundle for identity. Returns ErrNoArtifacts when no
// bundle exists or the bundle is older than the retention window.
func (s *Store) Read(identity string) (*Bundle, error) {
	data, err := os.ReadFile(s.cookiePath(identity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoArtifacts
		}
		return nil, fmt.Errorf("failed to read cookie bundle: %w", err)
	}

	var cb cookieBundle
	if err := json.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("failed to parse cookie bundle: %w", err)
	}

	age := time.Since(cb.CapturedAt)
	if age > s.retention {
		L_debug("artifacts: bundle expired", "identity", identity, "age", age.String())
		return nil, ErrNoArtifacts
	}

	bundle := &Bundle{
		Identity:   identity,
		CapturedAt: cb.CapturedAt,
		Cookies:    cb.Cookies,
	}

	// The storage snapshot is optional; a bundle without one restores
	// cookies only.
	if data, err := os.ReadFile(s.storagePath(identity)); err == nil {
		var snap storageSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			L_warn("artifacts: unreadable storage snapshot, ignoring", "identity", identity, "error", err)
		} else {
			bundle.LocalStorage = snap.LocalStorage
			bundle.SessionStorage = snap.SessionStorage
		}
	}

	return bundle, nil
}

// Write persists the bundle for bundle.Identity, replacing any previous
// files. Writes are whole-file replacements via a temp file rename so a
// crash never leaves a torn bundle.
func (s *Store) Write(bundle *Bundle) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	if bundle.CapturedAt.IsZero() {
		bundle.CapturedAt = time.Now()
	}

	cb := cookieBundle{
		Identity:   bundle.Identity,
		CapturedAt: bundle.CapturedAt,
		Cookies:    bundle.Cookies,
	}
	if err := writeJSON(s.cookiePath(bundle.Identity), cb); err != nil {
		return err
	}

	snap := storageSnapshot{
		Identity:       bundle.Identity,
		CapturedAt:     bundle.CapturedAt,
		LocalStorage:   bundle.LocalStorage,
		SessionStorage: bundle.SessionStorage,
	}
	if err := writeJSON(s.storagePath(bundle.Identity), snap); err != nil {
		return err
	}

	L_debug("artifacts: wrote bundle", "identity", bundle.Identity, "cookies", len(bundle.Cookies))
	return nil
}

// Delete removes both artifact files for identity and returns how many
// files were actually removed (0, 1 or 2).
func (s *Store) Delete(identity string) (int, error) {
	removed := 0
	for _, path := range []string{s.cookiePath(identity), s.storagePath(identity)} {
		if err := os.Remove(path); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	if removed > 0 {
		L_info("artifacts: deleted bundle", "identity", identity, "files", removed)
	}
	return removed, nil
}

// PurgeOlderThan physically deletes bundles whose capture time is older
// than maxAge and returns the number of files removed. Unlike Read's
// expiry check this actually removes data; it is only invoked explicitly.
func (s *Store) PurgeOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read artifacts dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, cookieSuffix) && !strings.HasSuffix(name, storageSuffix) {
			continue
		}

		path := filepath.Join(s.dir, name)
		capturedAt, ok := readCapturedAt(path)
		if !ok {
			// Unparseable file: fall back to mtime so junk still ages out.
			info, err := entry.Info()
			if err != nil {
				continue
			}
			capturedAt = info.ModTime()
		}

		if capturedAt.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				L_warn("artifacts: purge failed to remove file", "path", path, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		L_info("artifacts: purged expired files", "count", removed, "maxAge", maxAge.String())
	}
	return removed, nil
}

// Identities lists every identity with at least one artifact file.
func (s *Store) Identities() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read artifacts dir: %w", err)
	}

	seen := make(map[string]bool)
	var identities []string
	for _, entry := range entries {
		name := entry.Name()
		var base string
		switch {
		case strings.HasSuffix(name, cookieSuffix):
			base = strings.TrimSuffix(name, cookieSuffix)
		case strings.HasSuffix(name, storageSuffix):
			base = strings.TrimSuffix(name, storageSuffix)
		default:
			continue
		}
		identity, err := UnsanitizeIdentity(base)
		if err != nil || seen[identity] {
			continue
		}
		seen[identity] = true
		identities = append(identities, identity)
	}
	return identities, nil
}

func readCapturedAt(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var probe struct {
		CapturedAt time.Time `json:"capturedAt"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.CapturedAt.IsZero() {
		return time.Time{}, false
	}
	return probe.CapturedAt, true
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
