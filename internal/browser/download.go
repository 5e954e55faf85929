package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/bvisser/relogin/internal/logging"
	"github.com/go-rod/rod/lib/launcher"
)

// Downloader handles Chromium binary management.
type Downloader struct {
	binDir  string
	mu      sync.Mutex
	binPath string // cached once resolved
}

// NewDownloader creates a Chromium downloader rooted at binDir.
func NewDownloader(binDir string) *Downloader {
	return &Downloader{binDir: binDir}
}

// EnsureBrowser downloads Chromium if needed and returns the binary path.
// Safe to call concurrently; a no-op once downloaded.
func (d *Downloader) EnsureBrowser() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.binPath != "" {
		if _, err := os.Stat(d.binPath); err == nil {
			return d.binPath, nil
		}
		d.binPath = ""
	}

	if err := os.MkdirAll(d.binDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create browser bin directory: %w", err)
	}

	b := launcher.NewBrowser()
	b.RootDir = d.binDir

	binPath, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("failed to download browser: %w", err)
	}

	d.binPath = binPath
	L_info("browser: ready", "path", binPath)
	return binPath, nil
}

// FindExistingBrowser looks for an already-downloaded binary without
// triggering a download. Used when autoDownload is disabled.
func (d *Downloader) FindExistingBrowser() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.binPath != "" {
		if _, err := os.Stat(d.binPath); err == nil {
			return d.binPath, nil
		}
	}

	entries, err := os.ReadDir(d.binDir)
	if err != nil {
		return "", fmt.Errorf("browser not downloaded: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidates := []string{
			filepath.Join(d.binDir, entry.Name(), "chrome"),
			filepath.Join(d.binDir, entry.Name(), "chrome.exe"),
			filepath.Join(d.binDir, entry.Name(), "Chromium.app", "Contents", "MacOS", "Chromium"),
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				d.binPath = candidate
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("browser not downloaded: no chromium binary found in %s", d.binDir)
}
