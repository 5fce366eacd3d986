package bot

import (
	"strings"
	"testing"
)

func TestSegmentsShortMessageUnprefixed(t *testing.T) {
	got := segments("短消息")
	if len(got) != 1 || got[0] != "短消息" {
		t.Fatalf("got %v, want the message unchanged", got)
	}
}

func TestSplitTextHardCutsLongLine(t *testing.T) {
	text := strings.Repeat("a", 250)
	parts := segments(text)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	for i, p := range parts {
		prefix := []string{"[1/3] ", "[2/3] ", "[3/3] "}[i]
		if !strings.HasPrefix(p, prefix) {
			t.Fatalf("part %d = %q, want prefix %q", i, p, prefix)
		}
	}

	// Stripping the prefixes reconstructs the original exactly.
	var rebuilt strings.Builder
	for _, p := range parts {
		rebuilt.WriteString(p[strings.Index(p, "] ")+2:])
	}
	if rebuilt.String() != text {
		t.Fatalf("reconstruction mismatch: %d runes, want %d", len(rebuilt.String()), len(text))
	}
}

func TestSplitTextPrefersLineBreaks(t *testing.T) {
	lines := []string{
		strings.Repeat("x", 60),
		strings.Repeat("y", 60),
		strings.Repeat("z", 30),
	}
	parts := splitText(strings.Join(lines, "\n"), 100)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2: %q", len(parts), parts)
	}
	if parts[0] != lines[0] {
		t.Fatalf("first part = %q, want the first line alone", parts[0])
	}
	if parts[1] != lines[1]+"\n"+lines[2] {
		t.Fatalf("second part = %q, want lines two and three", parts[1])
	}
}

func TestSplitTextCountsRunesNotBytes(t *testing.T) {
	// 100 CJK runes are 300 bytes but still one segment.
	text := strings.Repeat("汉", 100)
	parts := splitText(text, 100)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}

	parts = splitText(text+"字", 100)
	if len(parts) != 2 {
		t.Fatalf("101 runes: got %d parts, want 2", len(parts))
	}
	if parts[1] != "字" {
		t.Fatalf("tail = %q, want the single overflow rune", parts[1])
	}
}

func TestSplitTextOversizedLineAfterShortOne(t *testing.T) {
	text := "intro\n" + strings.Repeat("b", 150)
	parts := splitText(text, 100)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3: %q", len(parts), parts)
	}
	if parts[0] != "intro" {
		t.Fatalf("first part = %q, want the short line flushed alone", parts[0])
	}
	if len([]rune(parts[1])) != 100 || len([]rune(parts[2])) != 50 {
		t.Fatalf("cut sizes = %d, %d; want 100, 50", len([]rune(parts[1])), len([]rune(parts[2])))
	}
}
