// Package metadata caches what the engine has learned about external
// executables: extracted flags, root positional candidates, and the lazily
// grown prefix tree of deeper subcommands. The cache is keyed by resolved
// absolute executable path and owned by the completion provider, not held
// as process globals.
package metadata

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// AttemptState distinguishes "never probed" from "probed and found
// nothing"; empty slices alone cannot express that difference.
type AttemptState int

const (
	NotTried AttemptState = iota
	TriedEmpty
	TriedWithValue
)

// JoinPrefix flattens a prefix token sequence into a tree key. Normalized
// tokens never contain spaces, so a space join is unambiguous.
func JoinPrefix(parts []string) string {
	return strings.Join(parts, " ")
}

// PositionalTree maps ordered non-flag token prefixes to their known next
// tokens. The root is the empty prefix.
type PositionalTree struct {
	nodes map[string][]string
}

// NewPositionalTree returns an empty tree.
func NewPositionalTree() *PositionalTree {
	return &PositionalTree{nodes: make(map[string][]string)}
}

// SetKey stores the candidates for a space-joined prefix key.
func (t *PositionalTree) SetKey(key string, words []string) {
	if words == nil {
		words = []string{}
	}
	t.nodes[key] = words
}

// Set stores the candidates for a prefix token sequence.
func (t *PositionalTree) Set(prefix []string, words []string) {
	t.SetKey(JoinPrefix(prefix), words)
}

// Get returns the candidates recorded for prefix and whether the prefix
// has an entry at all.
func (t *PositionalTree) Get(prefix []string) ([]string, bool) {
	words, ok := t.nodes[JoinPrefix(prefix)]
	return words, ok
}

// Keys returns every recorded prefix key in sorted order.
func (t *PositionalTree) Keys() []string {
	keys := make([]string, 0, len(t.nodes))
	for k := range t.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Nodes exposes the underlying mapping for serialization.
func (t *PositionalTree) Nodes() map[string][]string {
	return t.nodes
}

// Metadata is everything cached for one executable.
type Metadata struct {
	Flags       []string
	Positionals []string
	Tree        *PositionalTree
}

type entry struct {
	mu              sync.Mutex
	meta            Metadata
	state           AttemptState
	prefixAttempted map[string]bool
}

// Cache stores per-executable metadata for the process lifetime, with an
// optional persistent store consulted before probing. Concurrent reads are
// safe; at most one probe runs per (executable, prefix) key because
// computation happens under the entry lock.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	store   *Store
	logger  *zap.Logger
}

// NewCache creates an empty cache.
func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// SetStore attaches a persistent store. Probe results are written through
// and store hits count as attempted, so they are never re-probed.
func (c *Cache) SetStore(store *Store) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

func (c *Cache) lookupEntry(path string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		e = &entry{
			meta:            Metadata{Tree: NewPositionalTree()},
			prefixAttempted: make(map[string]bool),
		}
		c.entries[path] = e
	}
	return e
}

func (c *Cache) currentStore() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// TopLevelState reports the probe state for path.
func (c *Cache) TopLevelState(path string) AttemptState {
	e := c.lookupEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// EnsureTopLevel returns the metadata for path, computing it at most once
// per process lifetime. compute returns the metadata and whether the probe
// produced anything usable; either way the executable is marked attempted.
func (c *Cache) EnsureTopLevel(path string, compute func() (Metadata, bool)) Metadata {
	e := c.lookupEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != NotTried {
		return e.meta
	}

	if store := c.currentStore(); store != nil {
		if meta, empty, ok := store.LoadTopLevel(path); ok {
			e.meta = meta
			e.state = TriedWithValue
			if empty {
				e.state = TriedEmpty
			}
			c.logger.Debug("metadata served from store", zap.String("path", path))
			return e.meta
		}
	}

	meta, usable := compute()
	if meta.Tree == nil {
		meta.Tree = NewPositionalTree()
	}
	e.meta = meta
	if usable {
		e.state = TriedWithValue
	} else {
		e.state = TriedEmpty
	}

	if store := c.currentStore(); store != nil {
		if err := store.SaveTopLevel(path, meta, !usable); err != nil {
			c.logger.Warn("failed to persist metadata",
				zap.String("path", path), zap.Error(err))
		}
	}
	return e.meta
}

// PrefixState reports the probe state for one prefix of path. A prefix
// discovered by the top-level parse counts as TriedWithValue.
func (c *Cache) PrefixState(path string, prefix []string) AttemptState {
	e := c.lookupEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if words, ok := e.meta.Tree.Get(prefix); ok {
		if len(words) > 0 {
			return TriedWithValue
		}
		return TriedEmpty
	}
	if e.prefixAttempted[JoinPrefix(prefix)] {
		return TriedEmpty
	}
	return NotTried
}

// EnsurePrefix returns the candidates for a prefix, probing via compute at
// most once per key. The (possibly empty) result is cached against the
// exact prefix.
func (c *Cache) EnsurePrefix(path string, prefix []string, compute func() []string) []string {
	e := c.lookupEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()

	if words, ok := e.meta.Tree.Get(prefix); ok && len(words) > 0 {
		return words
	}
	key := JoinPrefix(prefix)
	if e.prefixAttempted[key] {
		words, _ := e.meta.Tree.Get(prefix)
		return words
	}
	e.prefixAttempted[key] = true

	var words []string
	loaded := false
	if store := c.currentStore(); store != nil {
		if stored, ok := store.LoadPrefix(path, key); ok {
			words = stored
			loaded = true
		}
	}
	if !loaded {
		words = compute()
		if store := c.currentStore(); store != nil {
			if err := store.SavePrefix(path, key, words); err != nil {
				c.logger.Warn("failed to persist prefix candidates",
					zap.String("path", path), zap.String("prefix", key), zap.Error(err))
			}
		}
	}

	e.meta.Tree.Set(prefix, words)
	return words
}

// TreeCandidates returns the candidates the tree already holds for prefix
// without triggering a probe.
func (c *Cache) TreeCandidates(path string, prefix []string) ([]string, bool) {
	e := c.lookupEntry(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.Tree.Get(prefix)
}
