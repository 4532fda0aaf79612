package textdiff

import (
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
)

const shortLimit = 240

// Lines compares a and b line by line and returns every position that differs,
// with 1-based line numbers. Missing lines compare as empty.
func Lines(a, b string) []domain.LineChange {
	la := strings.Split(a, "\n")
	lb := strings.Split(b, "\n")

	var out []domain.LineChange
	for i := 0; i < max(len(la), len(lb)); i++ {
		var oldLine, newLine string
		if i < len(la) {
			oldLine = la[i]
		}
		if i < len(lb) {
			newLine = lb[i]
		}
		if oldLine == newLine {
			continue
		}
		out = append(out, domain.LineChange{Line: i + 1, Old: oldLine, New: newLine})
	}
	return out
}

// Short collapses whitespace and truncates to 240 characters with an ellipsis,
// for summary listings.
func Short(s string) string {
	s = collapse(s)
	if r := []rune(s); len(r) > shortLimit {
		return string(r[:shortLimit-1]) + "…"
	}
	return s
}
