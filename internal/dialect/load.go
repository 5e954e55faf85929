package dialect

import (
	"fmt"
	"os"
	"sync"

	. "github.com/bvisser/relogin/internal/logging"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileOverrides is the YAML shape of a tables override file. Only the
// dialects present in the file are replaced; absent dialects keep their
// built-in tables.
type fileOverrides struct {
	Mobile  *Tables `yaml:"mobile"`
	Desktop *Tables `yaml:"desktop"`
}

// Load returns the default tables for baseURL, with any overrides from
// path applied on top. An empty path means defaults only.
func Load(baseURL, path string) (Set, error) {
	set := Defaults(baseURL)
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dialect tables: %w", err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse dialect tables: %w", err)
	}

	if overrides.Mobile != nil {
		set[Mobile] = *overrides.Mobile
	}
	if overrides.Desktop != nil {
		set[Desktop] = *overrides.Desktop
	}

	L_info("dialect: loaded table overrides", "path", path)
	return set, nil
}

// Provider hands out the current table set and can hot-reload it from an
// override file when it changes on disk. Safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	set     Set
	baseURL string
	path    string
	watcher *fsnotify.Watcher
}

// NewProvider loads the initial table set for baseURL (+ optional
// override file at path).
func NewProvider(baseURL, path string) (*Provider, error) {
	set, err := Load(baseURL, path)
	if err != nil {
		return nil, err
	}
	return &Provider{set: set, baseURL: baseURL, path: path}, nil
}

// Tables returns the current tables for a dialect.
func (p *Provider) Tables(d Dialect) Tables {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.set.Get(d)
}

// Watch starts watching the override file for changes and reloads the
// table set when it is rewritten. No-op if no override file is configured.
func (p *Provider) Watch() error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(p.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", p.path, err)
	}
	p.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				set, err := Load(p.baseURL, p.path)
				if err != nil {
					L_warn("dialect: reload failed, keeping previous tables", "error", err)
					continue
				}
				p.mu.Lock()
				p.set = set
				p.mu.Unlock()
				L_info("dialect: tables reloaded", "path", p.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				L_warn("dialect: watcher error", "error", err)
			}
		}
	}()

	L_debug("dialect: watching override file", "path", p.path)
	return nil
}

// Close stops the file watcher.
func (p *Provider) Close() {
	if p.watcher != nil {
		p.watcher.Close()
	}
}
