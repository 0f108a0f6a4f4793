package checkpoint

import "time"

// ToolUseBuffer accumulates the fine-grained checkpoints made between turn
// boundaries. Entries are owned by the buffer until the next turn-boundary
// snapshot drains them into the enclosing Snapshot.
type ToolUseBuffer struct {
	entries []ToolUseSnapshot
}

// NewToolUseBuffer returns an empty buffer.
func NewToolUseBuffer() *ToolUseBuffer {
	return &ToolUseBuffer{}
}

// Track appends an entry for a tool-level commit. It does not touch the
// snapshot index.
func (b *ToolUseBuffer) Track(commitID, toolName, message string) {
	b.entries = append(b.entries, ToolUseSnapshot{
		CommitID:  commitID,
		ToolName:  toolName,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Drain empties the buffer and returns its contents in insertion order.
// Ownership of the entries moves to the caller; the buffer is empty
// immediately after.
func (b *ToolUseBuffer) Drain() []ToolUseSnapshot {
	entries := b.entries
	b.entries = nil
	return entries
}

// Len returns the number of buffered entries.
func (b *ToolUseBuffer) Len() int { return len(b.entries) }

// Entries returns a copy of the buffered entries without draining them.
// Used for state persistence.
func (b *ToolUseBuffer) Entries() []ToolUseSnapshot {
	out := make([]ToolUseSnapshot, len(b.entries))
	copy(out, b.entries)
	return out
}

// Restore replaces the buffer contents with persisted entries.
func (b *ToolUseBuffer) Restore(entries []ToolUseSnapshot) {
	b.entries = append([]ToolUseSnapshot(nil), entries...)
}
