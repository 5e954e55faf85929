package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bvisser/relogin/internal/artifacts"
	. "github.com/bvisser/relogin/internal/logging"
)

// CacheInfo describes one account's persistent browser cache directory.
type CacheInfo struct {
	Identity string    `json:"identity"`
	Variant  string    `json:"variant"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	LastUsed time.Time `json:"lastUsed"`
}

// CacheManager hands out per-(identity, variant) browser cache
// directories under a single root. Directory names derive from the
// sanitized identity so they can be mapped back to accounts.
type CacheManager struct {
	root string
}

// NewCacheManager creates a cache manager rooted at root.
func NewCacheManager(root string) *CacheManager {
	return &CacheManager{root: root}
}

// Dir returns the cache directory path for an identity and variant
// without creating it.
func (m *CacheManager) Dir(identity, variant string) string {
	return filepath.Join(m.root, artifacts.SanitizeIdentity(identity), variant)
}

// Ensure creates the cache directory for an identity and variant and
// returns its path.
func (m *CacheManager) Ensure(identity, variant string) (string, error) {
	dir := m.Dir(identity, variant)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	return dir, nil
}

// Delete removes all cache directories for an identity (both variants).
// Returns true if anything was removed.
func (m *CacheManager) Delete(identity string) (bool, error) {
	dir := filepath.Join(m.root, artifacts.SanitizeIdentity(identity))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to delete cache dir: %w", err)
	}
	L_info("browser: deleted cache", "identity", identity)
	return true, nil
}

// List returns information about every cache directory under the root.
func (m *CacheManager) List() ([]CacheInfo, error) {
	accounts, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache root: %w", err)
	}

	var infos []CacheInfo
	for _, account := range accounts {
		if !account.IsDir() {
			continue
		}
		identity, err := artifacts.UnsanitizeIdentity(account.Name())
		if err != nil {
			L_warn("browser: unrecognized cache dir name", "name", account.Name())
			continue
		}

		variants, err := os.ReadDir(filepath.Join(m.root, account.Name()))
		if err != nil {
			continue
		}
		for _, variant := range variants {
			if !variant.IsDir() {
				continue
			}
			path := filepath.Join(m.root, account.Name(), variant.Name())
			info := CacheInfo{
				Identity: identity,
				Variant:  variant.Name(),
				Path:     path,
			}
			filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
				if err != nil {
					return nil // skip unreadable entries
				}
				if !fi.IsDir() {
					info.Size += fi.Size()
				}
				if fi.ModTime().After(info.LastUsed) {
					info.LastUsed = fi.ModTime()
				}
				return nil
			})
			infos = append(infos, info)
		}
	}
	return infos, nil
}
