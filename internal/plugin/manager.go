package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ManifestFile is the manifest name looked for in every plugin directory.
const ManifestFile = "plugin.json"

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager discovers plugins under a directory and looks them up by name.
type Manager struct {
	pluginDir string
	log       logrus.FieldLogger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for pluginDir. Call Discover to load plugins.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		log:       logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger used to report skipped plugins.
func (m *Manager) SetLogger(log logrus.FieldLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

// Discover reloads every <dir>/<name>/plugin.json. Broken plugins are logged
// and skipped; a missing plugin directory yields no plugins.
func (m *Manager) Discover() error {
	m.mu.RLock()
	log := m.log
	m.mu.RUnlock()

	found := make(map[string]*Plugin)
	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// A plain file where the directory should be means no plugins.
		if info, statErr := os.Stat(m.pluginDir); statErr != nil || info.IsDir() {
			return err
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.pluginDir, entry.Name())
		p, err := loadPlugin(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.WithError(err).WithField("plugin", entry.Name()).Warn("skipping plugin")
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "kept": prev.Path}).Warn("duplicate plugin name")
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	if len(found) > 0 {
		log.WithField("count", len(found)).Debug("plugins discovered")
	}
	return nil
}

// loadPlugin reads the manifest in dir. It returns an os.ErrNotExist error
// when dir has no manifest.
func loadPlugin(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Name == "" {
		manifest.Name = filepath.Base(dir)
	}
	if manifest.Executable == "" {
		return nil, errors.New("manifest has no executable")
	}

	args, err := shlex.Split(manifest.Args)
	if err != nil {
		return nil, fmt.Errorf("bad args: %w", err)
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: resolveExecutable(dir, manifest.Executable),
		Args:       args,
	}, nil
}

// resolveExecutable joins relative executables onto the plugin directory and
// adds the .exe suffix on Windows when only the suffixed binary exists.
func resolveExecutable(dir, exe string) string {
	if !filepath.IsAbs(exe) {
		exe = filepath.Join(dir, exe)
	}
	if runtime.GOOS == "windows" && filepath.Ext(exe) == "" {
		if _, err := os.Stat(exe + ".exe"); err == nil {
			return exe + ".exe"
		}
	}
	return exe
}

// Get returns a plugin by name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
