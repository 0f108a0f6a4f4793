package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skiffchat/cli/cmd/skiff/cli/jsonutil"
)

// StateFileName is the JSON file that persists the snapshot index, the
// pending tool-use buffer, and the mtime cache across process restarts. It
// lives inside the mirror's .git directory: the store root itself is the
// mirror working tree, and a sibling file there would show up in every
// changeset as a phantom deletion (and could collide with a workspace file
// of the same name).
const StateFileName = "state.json"

// statePath returns the on-disk location of the state file.
func (m *Manager) statePath() string {
	return filepath.Join(m.storeRoot, gitDir, StateFileName)
}

// managerState is the on-disk form of the manager's in-memory tables.
type managerState struct {
	Snapshots      []Snapshot        `json:"snapshots"`
	CommitIDs      []string          `json:"commit_ids"`
	SnapshotCount  int               `json:"snapshot_count"`
	PendingTools   []ToolUseSnapshot `json:"pending_tools,omitempty"`
	LastHistoryLen int               `json:"last_history_len"`
	MtimeCache     map[string]int64  `json:"mtime_cache,omitempty"`
}

// saveState writes the manager's tables to the store root. Called after
// every successful mutating operation.
func (m *Manager) saveState() error {
	state := managerState{
		Snapshots:      m.index.snapshots,
		CommitIDs:      m.index.oids,
		SnapshotCount:  m.index.count,
		PendingTools:   m.buffer.Entries(),
		LastHistoryLen: m.lastHistoryLen,
		MtimeCache:     m.store.Comparator().cacheSnapshot(),
	}

	data, err := jsonutil.MarshalIndentWithNewline(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint state: %w", err)
	}

	if err := os.WriteFile(m.statePath(), data, 0o600); err != nil {
		return fmt.Errorf("writing checkpoint state: %w", err)
	}
	return nil
}

// loadState reads persisted tables back into the manager. A missing state
// file yields empty tables (fresh store). The table invariant is verified
// before the loaded state is accepted.
func (m *Manager) loadState() error {
	data, err := os.ReadFile(m.statePath()) //nolint:gosec // path is derived from the store root
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading checkpoint state: %w", err)
	}

	var state managerState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing checkpoint state: %w", err)
	}

	index := &SnapshotIndex{
		snapshots: state.Snapshots,
		oids:      state.CommitIDs,
		count:     state.SnapshotCount,
	}
	if err := index.checkConsistent(); err != nil {
		return err
	}

	m.index = index
	m.buffer.Restore(state.PendingTools)
	m.lastHistoryLen = state.LastHistoryLen
	m.store.Comparator().restoreCache(state.MtimeCache)
	return nil
}
