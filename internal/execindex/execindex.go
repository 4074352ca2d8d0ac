// Package execindex enumerates the program names visible on the search
// path. The index is a point-in-time snapshot; callers refresh it
// explicitly when they want to pick up newly installed programs.
package execindex

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Index is a rebuildable snapshot of executable names on the search path.
// It is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	names    []string
	pathList func() string
	logger   *zap.Logger
}

// New builds an Index and performs the initial scan. pathList supplies the
// raw search path; nil means the process PATH variable.
func New(pathList func() string, logger *zap.Logger) *Index {
	if pathList == nil {
		pathList = func() string { return os.Getenv("PATH") }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ix := &Index{pathList: pathList, logger: logger}
	ix.Refresh()
	return ix
}

// Refresh rescans the search path and replaces the snapshot.
func (ix *Index) Refresh() {
	names := scan(ix.pathList(), ix.logger)
	ix.mu.Lock()
	ix.names = names
	ix.mu.Unlock()
}

// Names returns the sorted executable names in the current snapshot.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.names
}

// Match returns the names starting with prefix, in sorted order.
func (ix *Index) Match(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var matches []string
	for _, name := range ix.names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matches
}

func scan(pathList string, logger *zap.Logger) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if _, dup := seen[name]; dup {
				continue
			}
			if entry.IsDir() {
				continue
			}
			if !canExecute(filepath.Join(dir, name)) {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	sort.Strings(names)
	logger.Debug("executable index rebuilt", zap.Int("count", len(names)))
	return names
}
