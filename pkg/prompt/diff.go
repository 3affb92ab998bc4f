package prompt

import (
	"fmt"
	"strings"
)

// UnifiedDiff returns a minimal line diff between two strings, empty when
// equal. Shared leading lines are walked in lockstep; the remainder is
// emitted as removals then additions.
func UnifiedDiff(a, b string) string {
	if a == b {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("--- a\n+++ b\n")
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	i, j := 0, 0
	for i < len(al) || j < len(bl) {
		if i < len(al) && j < len(bl) && al[i] == bl[j] {
			i++
			j++
			continue
		}
		if i < len(al) {
			fmt.Fprintf(&sb, "-%s\n", al[i])
			i++
		}
		if j < len(bl) {
			fmt.Fprintf(&sb, "+%s\n", bl[j])
			j++
		}
	}
	return sb.String()
}

// Diff compares two stored versions of a template. Unknown name or version
// yields an empty diff.
func (s *Store) Diff(name string, v1, v2 int) string {
	p1, ok1 := s.Get(name, v1)
	p2, ok2 := s.Get(name, v2)
	if !ok1 || !ok2 {
		return ""
	}
	return UnifiedDiff(p1.Body, p2.Body)
}
