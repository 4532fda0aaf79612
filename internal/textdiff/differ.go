// Package textdiff computes ordered insert/delete/equal spans between the
// reference and comparison text of a page.
package textdiff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/spherical/pdf-diff/internal/domain"
)

// DefaultMaxSpanChars caps the text carried by one span.
const DefaultMaxSpanChars = 500

// Differ wraps diff-match-patch with semantic cleanup.
type Differ struct {
	dmp      *diffmatchpatch.DiffMatchPatch
	maxChars int
}

// New creates a Differ. maxChars <= 0 selects DefaultMaxSpanChars.
func New(maxChars int) *Differ {
	if maxChars <= 0 {
		maxChars = DefaultMaxSpanChars
	}
	return &Differ{dmp: diffmatchpatch.New(), maxChars: maxChars}
}

// Diff returns every span of the diff from a to b, in order.
func (d *Differ) Diff(a, b string) []domain.DiffSpan {
	diffs := d.dmp.DiffMain(a, b, false)
	diffs = d.dmp.DiffCleanupSemantic(diffs)

	spans := make([]domain.DiffSpan, 0, len(diffs))
	for _, df := range diffs {
		if df.Text == "" {
			continue
		}
		text, truncated := truncateRunes(df.Text, d.maxChars)
		spans = append(spans, domain.DiffSpan{
			Op:        opOf(df.Type),
			Text:      text,
			Position:  len(spans),
			Truncated: truncated,
		})
	}
	return spans
}

// Changes drops equal spans, keeping order and original positions.
func Changes(spans []domain.DiffSpan) []domain.DiffSpan {
	return filter(spans, func(s domain.DiffSpan) bool { return s.Op != domain.DiffEqual })
}

// Inserts keeps only insert spans.
func Inserts(spans []domain.DiffSpan) []domain.DiffSpan {
	return filter(spans, func(s domain.DiffSpan) bool { return s.Op == domain.DiffInsert })
}

// Count returns the number of insert and delete spans.
func Count(spans []domain.DiffSpan) (inserts, deletes int) {
	for _, s := range spans {
		switch s.Op {
		case domain.DiffInsert:
			inserts++
		case domain.DiffDelete:
			deletes++
		}
	}
	return inserts, deletes
}

func filter(spans []domain.DiffSpan, keep func(domain.DiffSpan) bool) []domain.DiffSpan {
	var out []domain.DiffSpan
	for _, s := range spans {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func opOf(t diffmatchpatch.Operation) domain.DiffOp {
	switch t {
	case diffmatchpatch.DiffInsert:
		return domain.DiffInsert
	case diffmatchpatch.DiffDelete:
		return domain.DiffDelete
	default:
		return domain.DiffEqual
	}
}

func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// collapse joins whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
