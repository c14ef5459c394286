package bridge

import (
	"strings"
	"testing"
)

// feedString pushes every byte of s through the framer, collecting
// completed lines.
func feedString(f *LineFramer, s string) []string {
	var lines []string
	for i := 0; i < len(s); i++ {
		if line, ok := f.Feed(s[i]); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestFeedFramesLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lf terminated",
			input: "ok\n",
			want:  []string{"ok"},
		},
		{
			name:  "crlf terminated",
			input: "G1 X10\r\nG1 Y20\n",
			want:  []string{"G1 X10", "G1 Y20"},
		},
		{
			name:  "empty lines suppressed",
			input: "\n\r\n\nok\n",
			want:  []string{"ok"},
		},
		{
			name:  "bare cr dropped mid line",
			input: "a\rb\n",
			want:  []string{"ab"},
		},
		{
			name:  "incomplete line not emitted",
			input: "echo:busy",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLineFramer(DefaultLineCapacity)
			got := feedString(f, tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("lines = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFeedCarriesPartialLineAcrossReads(t *testing.T) {
	// A line split across two serial reads must come out whole.
	f := NewLineFramer(DefaultLineCapacity)
	if lines := feedString(f, "X:0.00 Y:"); lines != nil {
		t.Fatalf("premature lines %v", lines)
	}
	lines := feedString(f, "0.00\n")
	if len(lines) != 1 || lines[0] != "X:0.00 Y:0.00" {
		t.Errorf("lines = %v, want [X:0.00 Y:0.00]", lines)
	}
}

func TestFeedTruncatesOverlongLine(t *testing.T) {
	const capacity = 8
	f := NewLineFramer(capacity)

	long := strings.Repeat("a", 20) + "\n"
	lines := feedString(f, long)

	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	// Truncated to capacity-1 payload bytes, silently.
	if want := strings.Repeat("a", capacity-1); lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
	if f.Dropped() != 20-(capacity-1) {
		t.Errorf("Dropped() = %d, want %d", f.Dropped(), 20-(capacity-1))
	}

	// Truncation must not poison the next line.
	lines = feedString(f, "ok\n")
	if len(lines) != 1 || lines[0] != "ok" {
		t.Errorf("post-truncation lines = %v, want [ok]", lines)
	}
}

func TestNewLineFramerRejectsTinyCapacity(t *testing.T) {
	f := NewLineFramer(0)
	// Falls back to the default rather than a zero-size buffer.
	lines := feedString(f, "hello\n")
	if len(lines) != 1 || lines[0] != "hello" {
		t.Errorf("lines = %v, want [hello]", lines)
	}
}

func TestReset(t *testing.T) {
	f := NewLineFramer(DefaultLineCapacity)
	feedString(f, "partial")
	if f.Len() == 0 {
		t.Fatal("expected buffered bytes before Reset")
	}
	f.Reset()
	if f.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", f.Len())
	}
}
