package completion

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Candidate is one curated completion entry for a known external tool.
type Candidate struct {
	Value       string `yaml:"value"`
	Description string `yaml:"description,omitempty"`
}

// overlayConfig is the YAML shape of both the embedded defaults and user
// overlay files: a map of command names to their subcommand entries.
type overlayConfig struct {
	Commands map[string][]Candidate `yaml:"commands"`
}

// StaticCompleter serves curated first-level subcommand lists for common
// external tools, so git/docker/go complete instantly and without a probe.
// Defaults are embedded at compile time; user overlay files extend or
// replace them.
type StaticCompleter struct {
	mu          sync.RWMutex
	completions map[string][]Candidate
	logger      *zap.Logger
}

// NewStaticCompleter loads the embedded defaults and any user overlays.
func NewStaticCompleter(logger *zap.Logger) *StaticCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StaticCompleter{
		completions: make(map[string][]Candidate),
		logger:      logger,
	}
	s.loadEmbedded()
	s.loadUserOverlays()
	return s
}

// Register sets the curated entries for one command.
func (s *StaticCompleter) Register(command string, entries []Candidate) {
	s.mu.Lock()
	s.completions[command] = entries
	s.mu.Unlock()
}

// Has reports whether command carries a curated overlay.
func (s *StaticCompleter) Has(command string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completions[command]
	return ok
}

// Commands returns the sorted list of commands with overlays.
func (s *StaticCompleter) Commands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.completions))
	for cmd := range s.completions {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Values returns the overlay values for command matching fragment, in
// their curated order.
func (s *StaticCompleter) Values(command, fragment string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.completions[command]
	if !ok {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Value, fragment) {
			out = append(out, entry.Value)
		}
	}
	return out
}

// loadEmbedded walks the compiled-in YAML files. A bad embedded file is a
// packaging bug, but completion still works without overlays, so it only
// logs.
func (s *StaticCompleter) loadEmbedded() {
	err := fs.WalkDir(overlayData, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		data, err := fs.ReadFile(overlayData, path)
		if err != nil {
			return err
		}
		return s.merge(data)
	})
	if err != nil {
		s.logger.Warn("failed to load embedded completion overlays", zap.Error(err))
	}
}

// loadUserOverlays reads the first parseable user overlay file, mirroring
// the shell's config lookup order.
func (s *StaticCompleter) loadUserOverlays() {
	for _, path := range userOverlayPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := s.merge(data); err != nil {
			s.logger.Warn("failed to parse completion overlay",
				zap.String("path", path), zap.Error(err))
			continue
		}
		break
	}
}

// Reload re-reads user overlay files on top of the current state.
func (s *StaticCompleter) Reload() {
	s.loadUserOverlays()
}

func (s *StaticCompleter) merge(data []byte) error {
	var config overlayConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}
	for command, entries := range config.Commands {
		s.Register(command, entries)
	}
	return nil
}

// userOverlayPaths returns overlay candidate locations, XDG config first.
func userOverlayPaths() []string {
	var paths []string
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths,
			filepath.Join(xdgConfig, "hush", "completions.yaml"),
			filepath.Join(xdgConfig, "hush", "completions.yml"),
		)
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths,
			filepath.Join(home, ".config", "hush", "completions.yaml"),
			filepath.Join(home, ".hush_completions.yaml"),
		)
	}
	return paths
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}
