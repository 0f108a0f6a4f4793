package checkpoint

import "testing"

func TestTagString(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		want string
	}{
		{"first turn", TurnTag(0), "1"},
		{"later turn", TurnTag(41), "42"},
		{"first tool of first turn", ToolTag(0, 0), "1.1"},
		{"third tool of second turn", ToolTag(1, 2), "2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		input string
		want  Tag
	}{
		{"1", TurnTag(0)},
		{"12", TurnTag(11)},
		{"3.2", ToolTag(2, 1)},
		{" 4 ", TurnTag(3)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTag(tt.input)
			if err != nil {
				t.Fatalf("ParseTag(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTagInvalid(t *testing.T) {
	for _, input := range []string{"", "0", "-1", "abc", "1.0", "1.x", "1.2.3", "."} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseTag(input); err == nil {
				t.Errorf("ParseTag(%q) should have failed", input)
			}
		})
	}
}

func TestParseTagRoundTrip(t *testing.T) {
	for _, tag := range []Tag{TurnTag(0), TurnTag(7), ToolTag(0, 0), ToolTag(4, 9)} {
		parsed, err := ParseTag(tag.String())
		if err != nil {
			t.Fatalf("ParseTag(%q) returned error: %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("round trip of %q = %+v, want %+v", tag.String(), parsed, tag)
		}
	}
}
