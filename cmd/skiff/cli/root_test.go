package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"init", "snapshot", "restore", "list", "expand", "diff", "status", "clean", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestSilentErrorUnwraps(t *testing.T) {
	inner := errors.New("already printed")
	wrapped := fmt.Errorf("context: %w", NewSilentError(inner))

	var silent *SilentError
	if !errors.As(wrapped, &silent) {
		t.Fatal("SilentError not found through errors.As")
	}
	if !errors.Is(wrapped, inner) {
		t.Error("SilentError should unwrap to the inner error")
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortHash = %q, want 01234567", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash of short input = %q, want abc", got)
	}
}
