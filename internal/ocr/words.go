// Package ocr provides the OCR engines used to recover page text and word
// geometry from rendered page rasters.
package ocr

import (
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
)

// cleanWords drops empty or whitespace-only tokens and trims the rest.
func cleanWords(words []domain.WordBox) []domain.WordBox {
	out := make([]domain.WordBox, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Box.Empty() {
			continue
		}
		w.Text = text
		out = append(out, w)
	}
	return out
}

// clampConfidence maps a 0-100 engine score onto 0..1.
func clampConfidence(score float64) float64 {
	c := score / 100.0
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
