package checkpoint

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skiffchat/cli/cmd/skiff/cli/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHistory is an in-memory History for manager tests.
type stubHistory struct {
	n int
}

func (h *stubHistory) Len() int { return h.n }

func (h *stubHistory) Pop() bool {
	if h.n == 0 {
		return false
	}
	h.n--
	return true
}

func newTestManager(t *testing.T) (*Manager, string, *stubHistory) {
	t.Helper()
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")
	hist := &stubHistory{}

	mgr := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       hist,
		Author:        testAuthor,
	})
	require.NoError(t, mgr.Init(context.Background()))
	return mgr, workspace, hist
}

func TestManagerLifecycle(t *testing.T) {
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")
	mgr := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       &stubHistory{},
		Author:        testAuthor,
	})
	ctx := context.Background()

	assert.False(t, mgr.Active())
	_, err := mgr.CreateSnapshot(ctx, "too early", true)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, mgr.Init(ctx))
	assert.True(t, mgr.Active())
	assert.ErrorIs(t, mgr.Init(ctx), ErrAlreadyInitialized)

	require.NoError(t, mgr.Clean(ctx))
	assert.False(t, mgr.Active())
	_, err = mgr.CreateSnapshot(ctx, "after clean", true)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// Write, snapshot, overwrite, snapshot, restore the first: the original
// content comes back.
func TestSnapshotRestoreRoundTrip(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "first", true)
	require.NoError(t, err)

	records, err := mgr.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].Tag)

	testutil.WriteFile(t, workspace, "a.txt", "y")
	testutil.TouchFuture(t, workspace, "a.txt")
	_, err = mgr.CreateSnapshot(ctx, "second", true)
	require.NoError(t, err)

	records, err = mgr.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[1].Tag)

	_, err = mgr.Restore(ctx, TurnTag(0))
	require.NoError(t, err)
	assert.Equal(t, "x", testutil.ReadFile(t, workspace, "a.txt"))
}

// A tool-use checkpoint buffered between two turn boundaries folds under the
// second turn and leaves the buffer empty.
func TestToolUseFoldsIntoNextTurn(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	testutil.WriteFile(t, workspace, "b.txt", "written by tool")
	_, err = mgr.TrackToolUse(ctx, "fs_write", "wrote file")
	require.NoError(t, err)

	pending, err := mgr.PendingToolUses()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	_, err = mgr.CreateSnapshot(ctx, "turn2", true)
	require.NoError(t, err)

	pending, err = mgr.PendingToolUses()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	tools, err := mgr.Expand(TurnTag(1))
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "2.1", tools[0].Tag)
	assert.Equal(t, "fs_write", tools[0].ToolName)

	// The tool-level commit is addressable and restorable on its own.
	_, err = mgr.ResolveCommit(ToolTag(1, 0))
	require.NoError(t, err)
}

// A deleted file reappears with its original content after restoring to a
// checkpoint that predates the deletion.
func TestRestoreResurrectsDeletedFile(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "doomed.txt", "original content")
	_, err := mgr.CreateSnapshot(ctx, "before delete", true)
	require.NoError(t, err)

	testutil.RemoveFile(t, workspace, "doomed.txt")
	_, err = mgr.CreateSnapshot(ctx, "after delete", true)
	require.NoError(t, err)

	_, err = mgr.Restore(ctx, TurnTag(0))
	require.NoError(t, err)
	assert.Equal(t, "original content", testutil.ReadFile(t, workspace, "doomed.txt"))
}

// An out-of-range restore fails during validation, before any filesystem or
// history mutation.
func TestRestoreOutOfRangeMutatesNothing(t *testing.T) {
	mgr, workspace, hist := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "only", true)
	require.NoError(t, err)

	hist.n = 5
	testutil.WriteFile(t, workspace, "a.txt", "uncommitted edit")
	testutil.TouchFuture(t, workspace, "a.txt")

	_, err = mgr.Restore(ctx, TurnTag(5))
	assert.ErrorIs(t, err, ErrTagNotFound)

	assert.Equal(t, "uncommitted edit", testutil.ReadFile(t, workspace, "a.txt"))
	assert.Equal(t, 5, hist.Len(), "history must be untouched after a failed restore")
}

// Two consecutive turn snapshots with no workspace change in between: the
// duplication policy is to append both, with distinct commits.
func TestNoOpSnapshotStillAppends(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	first, err := mgr.CreateSnapshot(ctx, "first", true)
	require.NoError(t, err)

	modified, err := mgr.AnyModified()
	require.NoError(t, err)
	require.False(t, modified)

	second, err := mgr.CreateSnapshot(ctx, "second", true)
	require.NoError(t, err)

	count, err := mgr.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotEqual(t, first, second)
}

// The persisted state file must stay invisible to the mirror walks: Init
// saves state before the first snapshot, and every snapshot saves it again,
// so any leakage into the working tree would surface as a phantom deletion
// on the very next stage.
func TestStateFileInvisibleToSnapshots(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "first", true)
	require.NoError(t, err, "first snapshot after init must not trip over persisted state")

	_, err = mgr.CreateSnapshot(ctx, "second", true)
	require.NoError(t, err)

	modified, err := mgr.AnyModified()
	require.NoError(t, err)
	assert.False(t, modified, "persisted state must never read as a workspace change")

	// A workspace file that shares the state file's name is ordinary content.
	testutil.WriteFile(t, workspace, "state.json", `{"owned":"by the user"}`)
	_, err = mgr.CreateSnapshot(ctx, "third", true)
	require.NoError(t, err)

	testutil.RemoveFile(t, workspace, "state.json")
	_, err = mgr.Restore(ctx, TurnTag(2))
	require.NoError(t, err)
	assert.Equal(t, `{"owned":"by the user"}`, testutil.ReadFile(t, workspace, "state.json"))
}

func TestRestorePopsHistoryFromTargetOnward(t *testing.T) {
	mgr, workspace, hist := newTestManager(t)
	ctx := context.Background()

	// Turn 1 closes over 2 messages, turn 2 over 3 more.
	hist.n = 2
	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	hist.n = 5
	testutil.WriteFile(t, workspace, "a.txt", "y")
	testutil.TouchFuture(t, workspace, "a.txt")
	_, err = mgr.CreateSnapshot(ctx, "turn2", true)
	require.NoError(t, err)

	// Restoring to turn 1 discards its own messages and everything after.
	_, err = mgr.Restore(ctx, TurnTag(0))
	require.NoError(t, err)
	assert.Equal(t, 0, hist.Len())
}

// Tool checkpoints buffered before a restore belong to the abandoned
// lineage and must not fold under the first turn taken after the rewind.
func TestRestoreDiscardsPendingToolUses(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	testutil.WriteFile(t, workspace, "b.txt", "abandoned")
	_, err = mgr.TrackToolUse(ctx, "fs_write", "wrote file")
	require.NoError(t, err)

	_, err = mgr.Restore(ctx, TurnTag(0))
	require.NoError(t, err)

	pending, err := mgr.PendingToolUses()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	_, err = mgr.CreateSnapshot(ctx, "turn after rewind", true)
	require.NoError(t, err)
	tools, err := mgr.Expand(TurnTag(1))
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestRestoreHistoryUnderflowFailsBeforeMutation(t *testing.T) {
	mgr, workspace, hist := newTestManager(t)
	ctx := context.Background()

	hist.n = 3
	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	// The transcript shrank out from under the index.
	hist.n = 1

	_, err = mgr.Restore(ctx, TurnTag(0))
	assert.ErrorIs(t, err, ErrHistoryUnderflow)
	assert.Equal(t, 1, hist.Len())
}

func TestManagerStatePersistsAcrossReopen(t *testing.T) {
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")
	hist := &stubHistory{}
	ctx := context.Background()

	mgr := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       hist,
		Author:        testAuthor,
	})
	require.NoError(t, mgr.Init(ctx))

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)
	_, err = mgr.TrackToolUse(ctx, "shell", "ran a command")
	require.NoError(t, err)

	// New process: a fresh manager over the same store.
	reopened := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       hist,
		Author:        testAuthor,
	})
	require.NoError(t, reopened.Open(ctx))

	count, err := reopened.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pending, err := reopened.PendingToolUses()
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "buffered tool uses must survive a restart")

	modified, err := reopened.AnyModified()
	require.NoError(t, err)
	assert.False(t, modified, "persisted mtime cache must keep the workspace clean after reopen")

	records, err := reopened.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "turn1", records[0].Message)
}

func TestOpenRejectsDesyncedState(t *testing.T) {
	workspace := t.TempDir()
	storeRoot := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()

	mgr := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       &stubHistory{},
		Author:        testAuthor,
	})
	require.NoError(t, mgr.Init(ctx))
	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	// Corrupt the persisted count so the parallel tables disagree.
	stateRel := filepath.Join(gitDir, StateFileName)
	state := testutil.ReadFile(t, storeRoot, stateRel)
	corrupted := strings.Replace(state, `"snapshot_count": 1`, `"snapshot_count": 3`, 1)
	require.NotEqual(t, state, corrupted, "state file did not contain the expected count")
	testutil.WriteFile(t, storeRoot, stateRel, corrupted)

	reopened := NewManager(Options{
		WorkspaceRoot: workspace,
		StoreRoot:     storeRoot,
		History:       &stubHistory{},
		Author:        testAuthor,
	})
	err = reopened.Open(ctx)
	assert.ErrorIs(t, err, ErrTablesDesynced)
	assert.False(t, reopened.Active())
}

func TestExpandRejectsToolLevelTag(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	_, err := mgr.CreateSnapshot(ctx, "turn1", true)
	require.NoError(t, err)

	_, err = mgr.Expand(ToolTag(0, 0))
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestListLimit(t *testing.T) {
	mgr, workspace, _ := newTestManager(t)
	ctx := context.Background()

	testutil.WriteFile(t, workspace, "a.txt", "x")
	for _, msg := range []string{"one", "two", "three"} {
		_, err := mgr.CreateSnapshot(ctx, msg, true)
		require.NoError(t, err)
	}

	records, err := mgr.List(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "two", records[0].Message)
	assert.Equal(t, "three", records[1].Message)
	assert.Equal(t, "2", records[0].Tag, "tags keep their absolute position under a limit")
}
