package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJoinPrefix(t *testing.T) {
	assert.Equal(t, "", JoinPrefix(nil))
	assert.Equal(t, "add", JoinPrefix([]string{"add"}))
	assert.Equal(t, "add item", JoinPrefix([]string{"add", "item"}))
}

func TestPositionalTree_SetGet(t *testing.T) {
	tree := NewPositionalTree()

	_, ok := tree.Get([]string{"add"})
	assert.False(t, ok)

	tree.Set([]string{"add"}, []string{"item", "group"})
	words, ok := tree.Get([]string{"add"})
	require.True(t, ok)
	assert.Equal(t, []string{"item", "group"}, words)

	tree.Set([]string{"remove"}, nil)
	words, ok = tree.Get([]string{"remove"})
	require.True(t, ok)
	assert.Empty(t, words)

	assert.Equal(t, []string{"add", "remove"}, tree.Keys())
}

func TestCache_EnsureTopLevel_ComputesOnce(t *testing.T) {
	cache := NewCache(zap.NewNop())
	calls := 0

	compute := func() (Metadata, bool) {
		calls++
		return Metadata{Flags: []string{"--verbose"}}, true
	}

	meta := cache.EnsureTopLevel("/usr/bin/tool", compute)
	assert.Equal(t, []string{"--verbose"}, meta.Flags)
	assert.NotNil(t, meta.Tree)

	meta = cache.EnsureTopLevel("/usr/bin/tool", compute)
	assert.Equal(t, []string{"--verbose"}, meta.Flags)
	assert.Equal(t, 1, calls)
	assert.Equal(t, TriedWithValue, cache.TopLevelState("/usr/bin/tool"))
}

func TestCache_EnsureTopLevel_RemembersEmptyProbe(t *testing.T) {
	cache := NewCache(zap.NewNop())
	calls := 0

	compute := func() (Metadata, bool) {
		calls++
		return Metadata{}, false
	}

	assert.Equal(t, NotTried, cache.TopLevelState("/usr/bin/mute"))
	cache.EnsureTopLevel("/usr/bin/mute", compute)
	cache.EnsureTopLevel("/usr/bin/mute", compute)

	assert.Equal(t, 1, calls)
	assert.Equal(t, TriedEmpty, cache.TopLevelState("/usr/bin/mute"))
}

func TestCache_EntriesAreIndependent(t *testing.T) {
	cache := NewCache(zap.NewNop())

	cache.EnsureTopLevel("/bin/a", func() (Metadata, bool) {
		return Metadata{Flags: []string{"-a"}}, true
	})
	assert.Equal(t, NotTried, cache.TopLevelState("/bin/b"))
}

func TestCache_EnsurePrefix_CachesEmptyResult(t *testing.T) {
	cache := NewCache(zap.NewNop())
	calls := 0

	compute := func() []string {
		calls++
		return nil
	}

	prefix := []string{"deploy"}
	assert.Equal(t, NotTried, cache.PrefixState("/bin/tool", prefix))

	assert.Empty(t, cache.EnsurePrefix("/bin/tool", prefix, compute))
	assert.Empty(t, cache.EnsurePrefix("/bin/tool", prefix, compute))

	assert.Equal(t, 1, calls)
	assert.Equal(t, TriedEmpty, cache.PrefixState("/bin/tool", prefix))
}

func TestCache_EnsurePrefix_ServesTreeHitWithoutProbing(t *testing.T) {
	cache := NewCache(zap.NewNop())

	cache.EnsureTopLevel("/bin/tool", func() (Metadata, bool) {
		tree := NewPositionalTree()
		tree.Set([]string{"add"}, []string{"item"})
		return Metadata{Tree: tree}, true
	})

	words := cache.EnsurePrefix("/bin/tool", []string{"add"}, func() []string {
		t.Fatal("compute must not run for a tree hit")
		return nil
	})
	assert.Equal(t, []string{"item"}, words)
	assert.Equal(t, TriedWithValue, cache.PrefixState("/bin/tool", []string{"add"}))
}

func TestCache_EnsurePrefix_GrowsTree(t *testing.T) {
	cache := NewCache(zap.NewNop())

	words := cache.EnsurePrefix("/bin/tool", []string{"add"}, func() []string {
		return []string{"group", "item"}
	})
	assert.Equal(t, []string{"group", "item"}, words)

	cached, ok := cache.TreeCandidates("/bin/tool", []string{"add"})
	require.True(t, ok)
	assert.Equal(t, []string{"group", "item"}, cached)
}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCache_StoreHitSkipsProbe(t *testing.T) {
	dir := t.TempDir()

	first := NewCache(zap.NewNop())
	first.SetStore(openTestStore(t, dir))
	first.EnsureTopLevel("/bin/tool", func() (Metadata, bool) {
		return Metadata{Flags: []string{"--color"}, Positionals: []string{"run"}}, true
	})

	second := NewCache(zap.NewNop())
	second.SetStore(openTestStore(t, dir))
	meta := second.EnsureTopLevel("/bin/tool", func() (Metadata, bool) {
		t.Fatal("stored metadata must not be re-probed")
		return Metadata{}, false
	})

	assert.Equal(t, []string{"--color"}, meta.Flags)
	assert.Equal(t, []string{"run"}, meta.Positionals)
	assert.Equal(t, TriedWithValue, second.TopLevelState("/bin/tool"))
}

func TestCache_StoreRemembersEmptyProbe(t *testing.T) {
	dir := t.TempDir()

	first := NewCache(zap.NewNop())
	first.SetStore(openTestStore(t, dir))
	first.EnsureTopLevel("/bin/mute", func() (Metadata, bool) {
		return Metadata{}, false
	})

	second := NewCache(zap.NewNop())
	second.SetStore(openTestStore(t, dir))
	second.EnsureTopLevel("/bin/mute", func() (Metadata, bool) {
		t.Fatal("empty outcome must persist across caches")
		return Metadata{}, false
	})
	assert.Equal(t, TriedEmpty, second.TopLevelState("/bin/mute"))
}

func TestCache_StorePersistsPrefixCandidates(t *testing.T) {
	dir := t.TempDir()

	first := NewCache(zap.NewNop())
	first.SetStore(openTestStore(t, dir))
	first.EnsurePrefix("/bin/tool", []string{"add"}, func() []string {
		return []string{"item"}
	})

	second := NewCache(zap.NewNop())
	second.SetStore(openTestStore(t, dir))
	words := second.EnsurePrefix("/bin/tool", []string{"add"}, func() []string {
		t.Fatal("stored prefix must not be re-probed")
		return nil
	})
	assert.Equal(t, []string{"item"}, words)
}
