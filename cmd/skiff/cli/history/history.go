// Package history implements the conversation-history collaborator consumed
// by the checkpoint engine. The transcript is a JSONL file of chat entries;
// the engine only ever asks for its length and pops entries from the end, it
// never inspects content.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skiffchat/cli/cmd/skiff/cli/redact"
)

// Entry is one conversation message in the transcript.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is a JSONL-backed conversation history. It satisfies the
// checkpoint engine's History interface. Mutations are written through to
// disk immediately so the transcript and the checkpoint state stay aligned
// across process restarts.
type Transcript struct {
	path    string
	entries []Entry
}

// Load reads a transcript from path. A missing file yields an empty
// transcript bound to that path.
func Load(path string) (*Transcript, error) {
	t := &Transcript{path: path}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from workspace constants
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("parsing transcript line %d: %w", lineNo, err)
		}
		t.entries = append(t.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning transcript: %w", err)
	}

	return t, nil
}

// Len returns the number of entries.
func (t *Transcript) Len() int { return len(t.entries) }

// Append adds an entry to the end of the transcript and persists it. Entry
// content is scrubbed for secrets before anything touches disk.
func (t *Transcript) Append(entry Entry) error {
	entry.Content = redact.String(entry.Content)
	t.entries = append(t.entries, entry)
	return t.save()
}

// Pop discards the most recent entry and reports whether one existed. The
// truncated transcript is persisted before Pop returns.
func (t *Transcript) Pop() bool {
	if len(t.entries) == 0 {
		return false
	}
	t.entries = t.entries[:len(t.entries)-1]
	if err := t.save(); err != nil {
		// Put the entry count back so Len stays truthful about disk state.
		t.entries = t.entries[:len(t.entries)+1]
		return false
	}
	return true
}

// Entries returns a copy of the transcript entries.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// save rewrites the whole JSONL file. Transcripts are small relative to the
// filesystem work the checkpoint engine already does per turn.
func (t *Transcript) save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o750); err != nil {
		return fmt.Errorf("creating transcript directory: %w", err)
	}

	var buf bytes.Buffer
	for _, entry := range t.entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling transcript entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(t.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	return nil
}
