package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/gantry/internal/adapters/cache"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const testScope = "a1b2c3d4e5f60718"

func newTestStore(t *testing.T) (*cache.Store, string) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()

	dir := t.TempDir()
	store, err := cache.NewStore(dir, mockLogger)
	require.NoError(t, err)
	return store, dir
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	}
}

func TestStore_SaveAndRestore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "pip")
	writeTree(t, src, map[string]string{
		"wheels/requests.whl": "wheel-bytes",
		"http/index":          "metadata",
	})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	require.NoError(t, os.RemoveAll(src))

	restore, err := store.Restore(ctx, testScope, "linux-pip-abc", nil, []string{src})
	require.NoError(t, err)
	assert.True(t, restore.Hit())
	assert.True(t, restore.Exact)
	assert.Equal(t, "linux-pip-abc", restore.Key)

	content, err := os.ReadFile(filepath.Join(src, "wheels", "requests.whl"))
	require.NoError(t, err)
	assert.Equal(t, "wheel-bytes", string(content))

	content, err = os.ReadFile(filepath.Join(src, "http", "index"))
	require.NoError(t, err)
	assert.Equal(t, "metadata", string(content))
}

func TestStore_RestoreMiss(t *testing.T) {
	store, _ := newTestStore(t)

	restore, err := store.Restore(context.Background(), testScope, "linux-pip-abc", nil, []string{"/nope"})
	require.NoError(t, err)
	assert.False(t, restore.Hit())
}

func TestStore_RestorePrefix(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-aaa", []string{src}))

	restore, err := store.Restore(ctx, testScope, "linux-pip-zzz", []string{"linux-pip-"}, []string{src})
	require.NoError(t, err)
	assert.True(t, restore.Hit())
	assert.False(t, restore.Exact)
	assert.Equal(t, "linux-pip-aaa", restore.Key)
}

func TestStore_RestorePrefixNewestWins(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-old", []string{src}))
	require.NoError(t, store.Save(ctx, testScope, "linux-pip-new", []string{src}))

	restore, err := store.Restore(ctx, testScope, "linux-pip-none", []string{"linux-pip-"}, []string{src})
	require.NoError(t, err)
	assert.Equal(t, "linux-pip-new", restore.Key)
}

func TestStore_RestoreKeyOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-other", []string{src}))
	require.NoError(t, store.Save(ctx, testScope, "linux-pip-x", []string{src}))

	// The first restore key with any match wins, even when a later key
	// would match a newer entry.
	restore, err := store.Restore(ctx, testScope, "miss", []string{"linux-pip-", "linux-"}, []string{src})
	require.NoError(t, err)
	assert.Equal(t, "linux-pip-x", restore.Key)
}

func TestStore_PathsMustMatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	other := filepath.Join(t.TempDir(), "other")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	restore, err := store.Restore(ctx, testScope, "linux-pip-abc", []string{"linux-"}, []string{other})
	require.NoError(t, err)
	assert.False(t, restore.Hit())
}

func TestStore_SaveExistingKeyIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))
	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_SaveSkipsMissingPaths(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	missing := filepath.Join(t.TempDir(), "never-created")
	writeTree(t, src, map[string]string{"lock": "v1"})

	paths := []string{src, missing}
	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", paths))

	require.NoError(t, os.RemoveAll(src))

	restore, err := store.Restore(ctx, testScope, "linux-pip-abc", nil, paths)
	require.NoError(t, err)
	assert.True(t, restore.Hit())

	content, err := os.ReadFile(filepath.Join(src, "lock"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))
}

func TestStore_SaveNothingWhenAllPathsMissing(t *testing.T) {
	store, _ := newTestStore(t)

	missing := filepath.Join(t.TempDir(), "never-created")
	require.NoError(t, store.Save(context.Background(), testScope, "linux-pip-abc", []string{missing}))

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Persistence(t *testing.T) {
	store1, dir := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store1.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()

	store2, err := cache.NewStore(dir, mockLogger)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(src))

	restore, err := store2.Restore(ctx, testScope, "linux-pip-abc", nil, []string{src})
	require.NoError(t, err)
	assert.True(t, restore.Exact)
}

func TestStore_ScopesAreDisjoint(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	restore, err := store.Restore(ctx, "other-scope", "linux-pip-abc", []string{"linux-"}, []string{src})
	require.NoError(t, err)
	assert.False(t, restore.Hit())
}

func TestStore_Entries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "v1"})

	require.NoError(t, store.Save(ctx, "scope-b", "key-2", []string{src}))
	require.NoError(t, store.Save(ctx, "scope-a", "key-1", []string{src}))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "scope-a", entries[0].Scope)
	assert.Equal(t, "key-1", entries[0].Key)
	assert.Equal(t, "scope-b", entries[1].Scope)
	assert.Positive(t, entries[0].Size)
}

func TestStore_Clean(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "deps")
	writeTree(t, src, map[string]string{"lock": "some content to give the archive size"})

	require.NoError(t, store.Save(ctx, testScope, "linux-pip-abc", []string{src}))

	freed, err := store.Clean()
	require.NoError(t, err)
	assert.Positive(t, freed)

	restore, err := store.Restore(ctx, testScope, "linux-pip-abc", nil, []string{src})
	require.NoError(t, err)
	assert.False(t, restore.Hit())

	entries, err := store.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
