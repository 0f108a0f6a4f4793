// Package checkpoint implements the workspace checkpoint engine: a private
// commit-graph mirror of the user's working directory that supports
// snapshotting at two granularities (per conversation turn and per tool
// invocation) and restoring the workspace and conversation history to any
// prior checkpoint.
//
// The engine is deliberately not a general-purpose version control system:
// it diffs file existence and mtimes, never contents, and one mirror serves
// exactly one workspace.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skiffchat/cli/cmd/skiff/cli/logging"
	"github.com/skiffchat/cli/cmd/skiff/cli/redact"

	"github.com/go-git/go-git/v5/plumbing"
)

// Record is the externally visible listing form of a checkpoint, consumed by
// the command layer.
type Record struct {
	Tag       string    `json:"tag"`
	CommitID  string    `json:"commit_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolCount int       `json:"tool_count,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// WorkspaceRoot is the live working directory being mirrored.
	WorkspaceRoot string

	// StoreRoot is where the shadow store lives. It must be derived from the
	// per-installation data directory plus a workspace fingerprint so that
	// workspaces never collide on one mirror.
	StoreRoot string

	// History is the conversation-history collaborator.
	History History

	// Author signs mirror commits.
	Author Author
}

// Manager orchestrates the shadow store, the snapshot index, and the
// tool-use buffer behind a two-state lifecycle: Uninitialized -> Active (on
// Init or Open) -> Uninitialized (on Clean).
//
// CreateSnapshot, TrackToolUse, Restore, and Clean mutate the mirror working
// copy in place and must be externally serialized: at most one mutating call
// in flight per Manager. Read-only queries (AnyModified, List, Expand) may
// run concurrently with each other but never with a mutating call.
type Manager struct {
	workspaceRoot string
	storeRoot     string
	history       History
	author        Author

	// store is nil while the manager is Uninitialized.
	store          *ShadowStore
	index          *SnapshotIndex
	buffer         *ToolUseBuffer
	lastHistoryLen int
}

// NewManager returns an Uninitialized manager. Call Init to create a fresh
// store or Open to attach to an existing one.
func NewManager(opts Options) *Manager {
	return &Manager{
		workspaceRoot: opts.WorkspaceRoot,
		storeRoot:     opts.StoreRoot,
		history:       opts.History,
		author:        opts.Author,
		index:         NewSnapshotIndex(),
		buffer:        NewToolUseBuffer(),
	}
}

// Active reports whether the manager holds an initialized store.
func (m *Manager) Active() bool { return m.store != nil }

// requireActive guards every operation that needs an initialized store.
func (m *Manager) requireActive() error {
	if m.store == nil {
		return ErrNotInitialized
	}
	return nil
}

// Init creates the store and all indices together. Fails with
// ErrAlreadyInitialized if a store already exists at the store root.
func (m *Manager) Init(ctx context.Context) error {
	if m.store != nil {
		return ErrAlreadyInitialized
	}

	store, err := InitStore(m.workspaceRoot, m.storeRoot, m.author)
	if err != nil {
		return err
	}

	m.store = store
	m.index = NewSnapshotIndex()
	m.buffer = NewToolUseBuffer()
	m.lastHistoryLen = m.history.Len()

	if err := m.saveState(); err != nil {
		return err
	}

	logging.Info(ctx, "checkpoint store initialized",
		slog.String("store_root", m.storeRoot),
		slog.String("workspace", m.workspaceRoot),
	)
	return nil
}

// Open attaches the manager to an existing store and loads the persisted
// index, buffer, and mtime cache. Fails with ErrNotInitialized if no store
// exists.
func (m *Manager) Open(ctx context.Context) error {
	if m.store != nil {
		return nil
	}

	store, err := OpenStore(m.workspaceRoot, m.storeRoot, m.author)
	if err != nil {
		return err
	}
	m.store = store

	if err := m.loadState(); err != nil {
		m.store = nil
		return err
	}

	logging.Debug(ctx, "checkpoint store opened",
		slog.String("store_root", m.storeRoot),
		slog.Int("snapshots", m.index.Len()),
	)
	return nil
}

// CreateSnapshot stages the current workspace state into the mirror and
// commits it. At a turn boundary the pending tool-use buffer is drained into
// a new Snapshot appended to the index, with MessagesSince taken from the
// conversation-history length delta since the previous boundary. Otherwise
// the commit is fed into the tool-use buffer.
//
// A call that detects zero workspace changes still commits and, at a turn
// boundary, still appends a turn record; callers wanting idempotence gate on
// AnyModified first.
func (m *Manager) CreateSnapshot(ctx context.Context, message string, isTurnBoundary bool) (string, error) {
	return m.createSnapshot(ctx, message, "", isTurnBoundary)
}

// TrackToolUse captures a fine-grained checkpoint around a tool invocation:
// a mirror commit followed by a tool-use buffer append. The snapshot index
// is not touched until the next turn boundary.
func (m *Manager) TrackToolUse(ctx context.Context, toolName, message string) (string, error) {
	return m.createSnapshot(ctx, message, toolName, false)
}

func (m *Manager) createSnapshot(ctx context.Context, message, toolName string, isTurnBoundary bool) (string, error) {
	if err := m.requireActive(); err != nil {
		return "", err
	}
	if err := m.index.checkConsistent(); err != nil {
		return "", err
	}

	// Messages are persisted in commit metadata and the state file; scrub
	// them before they land anywhere.
	message = redact.String(message)

	start := time.Now()
	commitHash, cs, err := m.store.StageAndCommit(ctx, message)
	if err != nil {
		return "", err
	}
	commitID := commitHash.String()

	if len(cs.Skipped) > 0 {
		logging.Warn(ctx, "some paths were skipped during staging",
			slog.Int("skipped", len(cs.Skipped)),
			slog.String("first_path", cs.Skipped[0].Path),
			slog.String("first_reason", cs.Skipped[0].Reason),
		)
	}

	if isTurnBoundary {
		messagesSince := m.history.Len() - m.lastHistoryLen
		if messagesSince < 0 {
			messagesSince = 0
		}

		snap := Snapshot{
			CommitID:      commitID,
			Timestamp:     time.Now().UTC(),
			Message:       message,
			MessagesSince: messagesSince,
			ToolSnapshots: m.buffer.Drain(),
		}
		tag, err := m.index.Append(snap)
		if err != nil {
			return "", err
		}
		m.lastHistoryLen = m.history.Len()

		logging.LogDuration(ctx, slog.LevelInfo, "turn snapshot created", start,
			slog.String("tag", tag.String()),
			slog.String("commit", commitID),
			slog.Int("changed", len(cs.Changed)),
			slog.Int("created", len(cs.Created)),
			slog.Int("deleted", len(cs.Deleted)),
			slog.Int("tool_snapshots", len(snap.ToolSnapshots)),
		)
	} else {
		m.buffer.Track(commitID, toolName, message)

		logging.LogDuration(ctx, slog.LevelDebug, "tool snapshot buffered", start,
			slog.String("commit", commitID),
			slog.String("tool", toolName),
			slog.Int("buffered", m.buffer.Len()),
		)
	}

	if err := m.saveState(); err != nil {
		return "", err
	}
	return commitID, nil
}

// Restore rewinds the workspace and the conversation history to the given
// tag. All validation (tag resolution, table invariant, history-length
// sufficiency) happens before any mutation, so a validation failure leaves
// both workspace and history untouched. A failure after mutation has begun
// is reported together with a mixed-state warning; the only prescribed
// recovery is Clean followed by manual inspection. Tool checkpoints still
// buffered at restore time are discarded with the lineage they came from.
func (m *Manager) Restore(ctx context.Context, tag Tag) (string, error) {
	if err := m.requireActive(); err != nil {
		return "", err
	}
	if err := m.index.checkConsistent(); err != nil {
		return "", err
	}

	commitID, err := m.index.Resolve(tag)
	if err != nil {
		return "", err
	}

	// History rollback sums MessagesSince from the target turn through the
	// end of the table.
	discard := m.index.MessagesSinceTotal(tag.Turn)
	if discard > m.history.Len() {
		return "", fmt.Errorf("%w: need to pop %d entries, history has %d",
			ErrHistoryUnderflow, discard, m.history.Len())
	}

	start := time.Now()
	for i := 0; i < discard; i++ {
		if !m.history.Pop() {
			return "", m.mixedState(fmt.Errorf("%w: history exhausted after %d of %d pops",
				ErrHistoryUnderflow, i, discard))
		}
	}

	commitHash := plumbing.NewHash(commitID)
	if err := m.store.ResetTo(commitHash); err != nil {
		return "", m.mixedState(err)
	}
	if err := m.store.SyncWorkspaceFrom(commitHash); err != nil {
		return "", m.mixedState(err)
	}

	// Pending tool checkpoints belong to the lineage just abandoned; folding
	// them under a post-restore turn would misattribute them.
	m.buffer.Drain()

	m.lastHistoryLen = m.history.Len()
	if err := m.saveState(); err != nil {
		return "", m.mixedState(err)
	}

	logging.LogDuration(ctx, slog.LevelInfo, "workspace restored", start,
		slog.String("tag", tag.String()),
		slog.String("commit", commitID),
		slog.Int("history_popped", discard),
	)
	return commitID, nil
}

// mixedState annotates an error that occurred after restore began mutating
// state.
func (m *Manager) mixedState(err error) error {
	return fmt.Errorf("restore failed after mutation began; workspace and history may be in a mixed state, run clean and inspect manually: %w", err)
}

// AnyModified is a thin pass-through to the comparator's fast path, used as
// a pre-check before incurring the cost of a snapshot.
func (m *Manager) AnyModified() (bool, error) {
	if err := m.requireActive(); err != nil {
		return false, err
	}
	return m.store.Comparator().AnyModified()
}

// List returns the most recent turn-level records, oldest first. A limit of
// zero or less returns everything.
func (m *Manager) List(limit int) ([]Record, error) {
	if err := m.requireActive(); err != nil {
		return nil, err
	}

	snaps := m.index.Snapshots()
	startIdx := 0
	if limit > 0 && len(snaps) > limit {
		startIdx = len(snaps) - limit
	}

	records := make([]Record, 0, len(snaps)-startIdx)
	for i := startIdx; i < len(snaps); i++ {
		records = append(records, Record{
			Tag:       TurnTag(i).String(),
			CommitID:  snaps[i].CommitID,
			Timestamp: snaps[i].Timestamp,
			Message:   snaps[i].Message,
			ToolCount: len(snaps[i].ToolSnapshots),
		})
	}
	return records, nil
}

// Expand returns the tool-level child records of a turn-level tag, in
// chronological order.
func (m *Manager) Expand(tag Tag) ([]Record, error) {
	if err := m.requireActive(); err != nil {
		return nil, err
	}
	if tag.IsToolLevel() {
		return nil, fmt.Errorf("%w: expand takes a turn-level tag, got %s", ErrTagNotFound, tag)
	}

	snap, err := m.index.ResolveTurn(tag.Turn)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(snap.ToolSnapshots))
	for i, tool := range snap.ToolSnapshots {
		records = append(records, Record{
			Tag:       ToolTag(tag.Turn, i).String(),
			CommitID:  tool.CommitID,
			Timestamp: tool.Timestamp,
			Message:   tool.Message,
			ToolName:  tool.ToolName,
		})
	}
	return records, nil
}

// ResolveCommit maps a tag to its mirror commit hash. Used by the command
// layer for diffing.
func (m *Manager) ResolveCommit(tag Tag) (plumbing.Hash, error) {
	if err := m.requireActive(); err != nil {
		return plumbing.ZeroHash, err
	}
	commitID, err := m.index.Resolve(tag)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return plumbing.NewHash(commitID), nil
}

// Store exposes the shadow store for read-only tree access (diff, listing
// files at a commit).
func (m *Manager) Store() *ShadowStore { return m.store }

// SnapshotCount returns the number of turn-level snapshots.
func (m *Manager) SnapshotCount() (int, error) {
	if err := m.requireActive(); err != nil {
		return 0, err
	}
	return m.index.Len(), nil
}

// PendingToolUses returns the number of tool snapshots buffered since the
// last turn boundary.
func (m *Manager) PendingToolUses() (int, error) {
	if err := m.requireActive(); err != nil {
		return 0, err
	}
	return m.buffer.Len(), nil
}

// Clean destroys the shadow store and discards the index and buffer,
// returning the manager to Uninitialized. The transition happens even when
// the destroy itself fails partway: the manager fails open to an
// uninitialized state and reports the error.
func (m *Manager) Clean(ctx context.Context) error {
	if err := m.requireActive(); err != nil {
		return err
	}

	err := m.store.Destroy()

	m.store = nil
	m.index = NewSnapshotIndex()
	m.buffer = NewToolUseBuffer()
	m.lastHistoryLen = 0

	if err != nil {
		return err
	}

	logging.Info(ctx, "checkpoint store destroyed",
		slog.String("store_root", m.storeRoot),
	)
	return nil
}
