package checkpoint

import (
	"fmt"
	"time"
)

// Snapshot is one turn-level checkpoint record. It is created when a turn
// boundary is committed and immutable thereafter; the SnapshotIndex is its
// sole owner.
type Snapshot struct {
	// CommitID is the mirror commit whose tree equals the workspace at
	// snapshot time.
	CommitID string `json:"commit_id"`

	// Timestamp is when the snapshot was created.
	Timestamp time.Time `json:"timestamp"`

	// Message is the human-readable description of the snapshot.
	Message string `json:"message"`

	// MessagesSince is the number of conversation-history entries added
	// since the previous turn boundary.
	MessagesSince int `json:"messages_since"`

	// ToolSnapshots are the fine-grained checkpoints captured between the
	// previous turn boundary and this one, in chronological order.
	ToolSnapshots []ToolUseSnapshot `json:"tool_snapshots,omitempty"`
}

// ToolUseSnapshot is a fine-grained checkpoint captured around a single tool
// invocation within a turn.
type ToolUseSnapshot struct {
	CommitID  string    `json:"commit_id"`
	ToolName  string    `json:"tool_name,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotIndex maintains the append-only turn history: an ordered snapshot
// table, a parallel commit-id table, and the snapshot count. The three must
// stay in lockstep; any divergence is a fatal consistency error, and the
// only prescribed recovery is clean followed by re-init.
type SnapshotIndex struct {
	snapshots []Snapshot
	oids      []string
	count     int
}

// NewSnapshotIndex returns an empty index.
func NewSnapshotIndex() *SnapshotIndex {
	return &SnapshotIndex{}
}

// Len returns the number of turn-level snapshots.
func (ix *SnapshotIndex) Len() int { return ix.count }

// checkConsistent asserts the table invariant. Called before every mutating
// operation and after load.
func (ix *SnapshotIndex) checkConsistent() error {
	if len(ix.snapshots) != len(ix.oids) || len(ix.snapshots) != ix.count {
		return fmt.Errorf("%w: %d snapshots, %d commit ids, count %d",
			ErrTablesDesynced, len(ix.snapshots), len(ix.oids), ix.count)
	}
	return nil
}

// Append adds a snapshot to the committed history and returns its turn-level
// tag. Appending is the only mutation allowed on committed history; entries
// are never edited or deleted individually.
func (ix *SnapshotIndex) Append(snap Snapshot) (Tag, error) {
	if err := ix.checkConsistent(); err != nil {
		return Tag{}, err
	}

	ix.snapshots = append(ix.snapshots, snap)
	ix.oids = append(ix.oids, snap.CommitID)
	ix.count++

	return TurnTag(ix.count - 1), nil
}

// Resolve maps a tag to the commit id it addresses. Out-of-range tags fail
// with ErrTagNotFound.
func (ix *SnapshotIndex) Resolve(tag Tag) (string, error) {
	if tag.IsToolLevel() {
		tool, err := ix.ResolveTool(tag.Turn, tag.Tool)
		if err != nil {
			return "", err
		}
		return tool.CommitID, nil
	}

	snap, err := ix.ResolveTurn(tag.Turn)
	if err != nil {
		return "", err
	}
	return snap.CommitID, nil
}

// ResolveTurn returns the snapshot at the given 0-based turn index.
func (ix *SnapshotIndex) ResolveTurn(turn int) (*Snapshot, error) {
	if turn < 0 || turn >= ix.count {
		return nil, fmt.Errorf("%w: turn %d of %d", ErrTagNotFound, turn+1, ix.count)
	}
	return &ix.snapshots[turn], nil
}

// ResolveTool returns the tool snapshot at the given 0-based turn and tool
// indices.
func (ix *SnapshotIndex) ResolveTool(turn, tool int) (*ToolUseSnapshot, error) {
	snap, err := ix.ResolveTurn(turn)
	if err != nil {
		return nil, err
	}
	if tool < 0 || tool >= len(snap.ToolSnapshots) {
		return nil, fmt.Errorf("%w: tool %d of %d in turn %d",
			ErrTagNotFound, tool+1, len(snap.ToolSnapshots), turn+1)
	}
	return &snap.ToolSnapshots[tool], nil
}

// Snapshots returns a copy of the snapshot table. Read-only consumers get a
// copy rather than a live handle, preserving the single-writer discipline.
func (ix *SnapshotIndex) Snapshots() []Snapshot {
	out := make([]Snapshot, len(ix.snapshots))
	copy(out, ix.snapshots)
	return out
}

// MessagesSinceTotal sums MessagesSince over every snapshot from the given
// turn index through the end of the table. This is the history-rollback
// count used by restore.
func (ix *SnapshotIndex) MessagesSinceTotal(fromTurn int) int {
	total := 0
	for i := fromTurn; i < len(ix.snapshots); i++ {
		total += ix.snapshots[i].MessagesSince
	}
	return total
}
