package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skiffchat/cli/cmd/skiff/cli/testutil"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Author{Name: "test", Email: "test@test.local"}

func newTestStore(t *testing.T) (*ShadowStore, string) {
	t.Helper()
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")

	store, err := InitStore(workspace, storeRoot, testAuthor)
	require.NoError(t, err)
	return store, workspace
}

func TestInitStoreTwiceFails(t *testing.T) {
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")

	_, err := InitStore(workspace, storeRoot, testAuthor)
	require.NoError(t, err)

	_, err = InitStore(workspace, storeRoot, testAuthor)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestOpenStoreMissingFails(t *testing.T) {
	storeRoot := filepath.Join(t.TempDir(), "nope")
	_, err := OpenStore(t.TempDir(), storeRoot, testAuthor)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStageAndCommitCapturesNewFile(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")

	hash, cs, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)
	require.NotEqual(t, plumbing.ZeroHash, hash)
	assert.Equal(t, []string{"a.txt"}, cs.Created)

	content, err := store.FileAtCommit(hash, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestStageAndCommitTracksModification(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	first, _, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)

	testutil.WriteFile(t, workspace, "a.txt", "y")
	testutil.TouchFuture(t, workspace, "a.txt")
	second, cs, err := store.StageAndCommit(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.Changed)

	beforeContent, err := store.FileAtCommit(first, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(beforeContent))

	afterContent, err := store.FileAtCommit(second, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "y", string(afterContent))
}

func TestStageAndCommitRemovesDeletedFile(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	testutil.WriteFile(t, workspace, "b.txt", "keep")
	_, _, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)

	testutil.RemoveFile(t, workspace, "a.txt")
	hash, cs, err := store.StageAndCommit(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cs.Deleted)

	files, err := store.FilesAtCommit(hash)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, files)
}

func TestEmptyChangesetStillCommits(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	first, _, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)

	second, cs, err := store.StageAndCommit(ctx, "second")
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.NotEqual(t, first, second, "no-op stage should still produce a distinct commit")
	assert.Equal(t, second, store.Head())
}

func TestSyncWorkspaceFromRestoresContentAndExtras(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	testutil.WriteFile(t, workspace, "sub/dir/b.txt", "nested")
	first, _, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)

	// Diverge: modify one file, add another, delete a third
	testutil.WriteFile(t, workspace, "a.txt", "changed")
	testutil.TouchFuture(t, workspace, "a.txt")
	testutil.WriteFile(t, workspace, "new.txt", "later")
	testutil.RemoveFile(t, workspace, "sub/dir/b.txt")
	_, _, err = store.StageAndCommit(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, store.ResetTo(first))
	require.NoError(t, store.SyncWorkspaceFrom(first))

	assert.Equal(t, "x", testutil.ReadFile(t, workspace, "a.txt"))
	assert.Equal(t, "nested", testutil.ReadFile(t, workspace, "sub/dir/b.txt"))
	assert.False(t, testutil.FileExists(t, workspace, "new.txt"), "file created after the checkpoint should be gone")

	// After a sync the workspace must read as clean.
	modified, err := store.Comparator().AnyModified()
	require.NoError(t, err)
	assert.False(t, modified)
}

func TestSyncWorkspaceFromPreservesInfrastructure(t *testing.T) {
	store, workspace := newTestStore(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	first, _, err := store.StageAndCommit(ctx, "first")
	require.NoError(t, err)

	testutil.WriteFile(t, workspace, ".skiff/settings.json", `{"enabled": true}`)

	require.NoError(t, store.SyncWorkspaceFrom(first))
	assert.True(t, testutil.FileExists(t, workspace, ".skiff/settings.json"),
		"sync must never delete skiff infrastructure")
}

func TestDestroyRemovesStore(t *testing.T) {
	store, workspace := newTestStore(t)
	storeRoot := store.Root()

	require.NoError(t, store.Destroy())
	assert.NoDirExists(t, storeRoot)

	_, err := OpenStore(workspace, storeRoot, testAuthor)
	assert.ErrorIs(t, err, ErrNotInitialized)
}
