package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a stable external address for a checkpoint: either a whole turn, or
// a tool invocation within a turn. Indices are 0-based internally and
// rendered 1-based as "N" or "N.M".
type Tag struct {
	Turn int
	Tool int

	toolLevel bool
}

// TurnTag addresses the turn-level snapshot at the given 0-based index.
func TurnTag(turn int) Tag {
	return Tag{Turn: turn}
}

// ToolTag addresses the tool-level snapshot at the given 0-based turn and
// tool indices.
func ToolTag(turn, tool int) Tag {
	return Tag{Turn: turn, Tool: tool, toolLevel: true}
}

// IsToolLevel reports whether the tag addresses a tool-level snapshot.
func (t Tag) IsToolLevel() bool { return t.toolLevel }

// String renders the tag in its 1-based user-facing form.
func (t Tag) String() string {
	if t.toolLevel {
		return fmt.Sprintf("%d.%d", t.Turn+1, t.Tool+1)
	}
	return strconv.Itoa(t.Turn + 1)
}

// ParseTag parses a user-facing tag: "N" for a turn, "N.M" for a tool
// invocation within a turn. Both components are 1-based in text.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tag{}, fmt.Errorf("invalid tag %q: empty", s)
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Tag{}, fmt.Errorf("invalid tag %q: expected N or N.M", s)
	}

	turn, err := strconv.Atoi(parts[0])
	if err != nil || turn < 1 {
		return Tag{}, fmt.Errorf("invalid tag %q: turn must be a positive integer", s)
	}

	if len(parts) == 1 {
		return TurnTag(turn - 1), nil
	}

	tool, err := strconv.Atoi(parts[1])
	if err != nil || tool < 1 {
		return Tag{}, fmt.Errorf("invalid tag %q: tool index must be a positive integer", s)
	}

	return ToolTag(turn-1, tool-1), nil
}
