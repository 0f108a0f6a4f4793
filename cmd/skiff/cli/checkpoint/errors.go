package checkpoint

import (
	"errors"
	"fmt"
)

// Errors returned by checkpoint operations.
var (
	// ErrAlreadyInitialized is returned by Init when a store already exists
	// at the target root.
	ErrAlreadyInitialized = errors.New("checkpoint store already initialized")

	// ErrNotInitialized is returned when an operation requires an active
	// store and none exists.
	ErrNotInitialized = errors.New("checkpoint store not initialized")

	// ErrTagNotFound is returned when a tag does not resolve to a snapshot.
	ErrTagNotFound = errors.New("checkpoint tag not found")

	// ErrTablesDesynced is returned when the snapshot table, the commit-id
	// table, and the snapshot count disagree. This is not recoverable in
	// place; the only prescribed recovery is clean followed by re-init.
	ErrTablesDesynced = errors.New("snapshot tables desynced (run clean and re-initialize to recover)")

	// ErrHistoryUnderflow is returned when a restore would pop more
	// conversation entries than the history holds.
	ErrHistoryUnderflow = errors.New("conversation history shorter than checkpoint rollback")
)

// StoreError wraps a failure of the mirror commit graph: corruption, or I/O
// during commit and reset.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("shadow store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SyncError wraps a copy or delete failure while staging workspace files into
// the mirror or resyncing the workspace from a commit. When a SyncError
// surfaces after staging has begun, the workspace and mirror may be in a
// mixed state.
type SyncError struct {
	Op   string
	Path string
	Err  error
}

func (e *SyncError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
