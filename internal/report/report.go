// Package report aggregates per-page comparison results into the run summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/textdiff"
)

// Totals are exact sums over Summary.Pages.
type Totals struct {
	Pages                  int `json:"pages"`
	ChangedPixels          int `json:"changed_pixels"`
	PagesWithoutPixelCount int `json:"pages_without_pixel_count"`
	PagesWithOverlay       int `json:"pages_with_overlay"`
	PagesWithChanges       int `json:"pages_with_changes"`
	TextChangeSpans        int `json:"text_change_spans"`
	Inserts                int `json:"inserts"`
	Deletes                int `json:"deletes"`
	MappedBoxes            int `json:"mapped_boxes"`
	DegradedPages          int `json:"degraded_pages"`
	PaddedPages            int `json:"padded_pages"`
}

// PageLines holds the line-level listing of one page.
type PageLines struct {
	PageIndex int                 `json:"page_index"`
	Lines     []domain.LineChange `json:"lines"`
}

// PageSignals holds the changed minima values of one page.
type PageSignals struct {
	PageIndex int                   `json:"page_index"`
	Changes   []domain.SignalChange `json:"changes"`
}

// Summary is the structured record set of one comparison run.
type Summary struct {
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Reference   string               `json:"reference,omitempty"`
	Comparison  string               `json:"comparison,omitempty"`
	Documents   []domain.Document    `json:"documents,omitempty"`
	OutputPath  string               `json:"output_path,omitempty"`
	Totals      Totals               `json:"totals"`
	Pages       []domain.PageSummary `json:"pages"`
	LineChanges []PageLines          `json:"line_changes,omitempty"`
	Signals     []PageSignals        `json:"signals,omitempty"`
	Document    []domain.Degradation `json:"document_degradations,omitempty"`
}

// Build summarizes results, which must be ordered by page index.
func Build(runID string, results []domain.PageResult, generatedAt time.Time) Summary {
	s := Summary{
		RunID:       runID,
		GeneratedAt: generatedAt.UTC(),
		Pages:       make([]domain.PageSummary, 0, len(results)),
	}

	for _, r := range results {
		page := Page(r)
		s.Pages = append(s.Pages, page)
		s.Totals.add(page)

		if len(r.Lines) > 0 {
			s.LineChanges = append(s.LineChanges, PageLines{PageIndex: r.PageIndex, Lines: r.Lines})
		}
		if len(r.Signals) > 0 {
			s.Signals = append(s.Signals, PageSignals{PageIndex: r.PageIndex, Changes: r.Signals})
		}
	}
	return s
}

// Page converts one page result into its summary record.
func Page(r domain.PageResult) domain.PageSummary {
	inserts, deletes := textdiff.Count(r.Spans)
	return domain.PageSummary{
		PageIndex:        r.PageIndex,
		ChangedPixels:    r.PixelDiff.ChangedPixels,
		OverlayGenerated: r.PixelDiff.OverlayGenerated,
		TextChangeSpans:  inserts + deletes,
		Inserts:          inserts,
		Deletes:          deletes,
		MappedBoxes:      len(r.Changes),
		Alignment:        r.Alignment.Strategy,
		ReferenceText:    r.RefText.Source,
		ComparisonText:   r.CmpText.Source,
		Padded:           r.Padded,
		OverlayPath:      r.PixelDiff.OverlayPath,
		Degradations:     r.Degradations,
	}
}

func (t *Totals) add(p domain.PageSummary) {
	t.Pages++
	if p.ChangedPixels < 0 {
		t.PagesWithoutPixelCount++
	} else {
		t.ChangedPixels += p.ChangedPixels
	}
	if p.OverlayGenerated {
		t.PagesWithOverlay++
	}
	if p.ChangedPixels > 0 || p.TextChangeSpans > 0 {
		t.PagesWithChanges++
	}
	t.TextChangeSpans += p.TextChangeSpans
	t.Inserts += p.Inserts
	t.Deletes += p.Deletes
	t.MappedBoxes += p.MappedBoxes
	if len(p.Degradations) > 0 {
		t.DegradedPages++
	}
	if p.Padded {
		t.PaddedPages++
	}
}

// HasChanges reports whether any page differs visually or textually.
func (s Summary) HasChanges() bool {
	return s.Totals.PagesWithChanges > 0
}

// Degradations returns every recorded degradation, page by page.
func (s Summary) Degradations() []PageDegradation {
	var out []PageDegradation
	for _, p := range s.Pages {
		for _, d := range p.Degradations {
			out = append(out, PageDegradation{PageIndex: p.PageIndex, Degradation: d})
		}
	}
	return out
}

// PageDegradation ties a degradation to its page.
type PageDegradation struct {
	PageIndex int
	domain.Degradation
}

// JSON encodes the summary with indentation.
func (s Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// WriteJSON writes the summary to path.
func (s Summary) WriteJSON(path string) error {
	data, err := s.JSON()
	if err != nil {
		return domain.IOError("encode summary", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("write %s", path), err)
	}
	return nil
}
