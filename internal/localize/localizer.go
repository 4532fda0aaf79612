// Package localize maps inserted text spans onto OCR word boxes of the
// comparison page.
package localize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/spherical/pdf-diff/internal/domain"
)

// Normalize folds a token for matching: NFKC, lower case, punctuation and
// symbols removed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

type token struct {
	norm string
	box  domain.Rect
}

// Localize returns one ChangeRecord per insert span whose leading words can be
// found in words. Only the first occurrence of the leading word is tried; the
// match then extends over as many following words as keep matching. Spans that
// cannot be placed are dropped.
func Localize(pageIndex int, spans []domain.DiffSpan, words []domain.WordBox) []domain.ChangeRecord {
	if len(words) == 0 {
		return nil
	}

	tokens := make([]token, 0, len(words))
	for _, w := range words {
		if n := Normalize(w.Text); n != "" {
			tokens = append(tokens, token{norm: n, box: w.Box})
		}
	}

	var records []domain.ChangeRecord
	for _, span := range spans {
		if span.Op != domain.DiffInsert || strings.TrimSpace(span.Text) == "" {
			continue
		}
		box, ok := locate(spanWords(span.Text), tokens)
		if !ok {
			continue
		}
		records = append(records, domain.ChangeRecord{
			PageIndex: pageIndex,
			Box:       box,
			Text:      span.Text,
			Kind:      domain.ChangeInsert,
		})
	}
	return records
}

func spanWords(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		if n := Normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func locate(span []string, tokens []token) (domain.Rect, bool) {
	if len(span) == 0 {
		return domain.Rect{}, false
	}

	start := -1
	for i, t := range tokens {
		if t.norm == span[0] {
			start = i
			break
		}
	}
	if start < 0 {
		return domain.Rect{}, false
	}

	box := tokens[start].box
	for k := 1; k < len(span) && start+k < len(tokens); k++ {
		if tokens[start+k].norm != span[k] {
			break
		}
		box = box.Union(tokens[start+k].box)
	}
	return box, true
}
