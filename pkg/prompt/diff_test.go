package prompt

import (
	"strings"
	"testing"
)

func TestUnifiedDiff(t *testing.T) {
	d := UnifiedDiff("Hello\nWorld", "Hello\nEveryone")
	if !strings.Contains(d, "-World") || !strings.Contains(d, "+Everyone") {
		t.Fatalf("unexpected diff: %q", d)
	}
	if UnifiedDiff("same", "same") != "" {
		t.Fatal("equal inputs should diff empty")
	}
}

func TestStoreDiff(t *testing.T) {
	s := NewStore()
	p1, _, err := s.Save(Prompt{Name: "x", Body: "A"})
	if err != nil {
		t.Fatal(err)
	}
	p2, _, err := s.Save(Prompt{Name: "x", Body: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if d := s.Diff("x", p1.Version, p2.Version); !strings.Contains(d, "-A") || !strings.Contains(d, "+B") {
		t.Fatalf("diff = %q", d)
	}
	if d := s.Diff("missing", 1, 2); d != "" {
		t.Fatalf("diff for unknown name = %q", d)
	}
}
