package compose

import (
	"fmt"
	"time"

	"github.com/spherical/pdf-diff/internal/report"
	"github.com/spherical/pdf-diff/internal/signals"
	"github.com/spherical/pdf-diff/internal/textdiff"
)

// A4 portrait in points.
const (
	summaryWidth  = 595.28
	summaryHeight = 841.89

	summaryMargin  = 40.0
	summaryLeading = 12.0
	maxTableRows   = 20
)

type summaryLine struct {
	size float64
	text string
}

// drawSummary renders the trailing summary page. Content that does not fit on
// one page is cut with a pointer to summary.json so the page count stays fixed.
func (c *Composer) drawSummary(canvas Canvas, s report.Summary) {
	canvas.AddPage(summaryWidth, summaryHeight)

	lines := c.summaryLines(s)
	capacity := summaryCapacity()
	if len(lines) > capacity {
		lines = append(lines[:capacity-1], summaryLine{9, "… truncated, see summary.json for the full report"})
	}

	y := summaryHeight - summaryMargin
	for _, l := range lines {
		canvas.Text(summaryMargin, y, l.size, l.text)
		y -= summaryLeading
		if l.size > 10 {
			y -= l.size - 10
		}
	}
}

// summaryCapacity is the number of body lines that fit between the margins.
func summaryCapacity() int {
	avail := summaryHeight - 2*summaryMargin
	return int(avail / summaryLeading)
}

func (c *Composer) summaryLines(s report.Summary) []summaryLine {
	t := s.Totals
	out := []summaryLine{
		{16, c.opts.Title},
		{9, "Generated: " + s.GeneratedAt.Format(time.RFC3339)},
	}
	if s.RunID != "" {
		out = append(out, summaryLine{9, "Run: " + s.RunID})
	}
	if s.Reference != "" || s.Comparison != "" {
		out = append(out,
			summaryLine{9, "Reference: " + textdiff.Short(s.Reference)},
			summaryLine{9, "Comparison: " + textdiff.Short(s.Comparison)},
		)
	}

	out = append(out,
		summaryLine{12, "Totals"},
		summaryLine{9, fmt.Sprintf("Pages: %d   with changes: %d   padded: %d   degraded: %d",
			t.Pages, t.PagesWithChanges, t.PaddedPages, t.DegradedPages)},
		summaryLine{9, fmt.Sprintf("Changed pixels: %d   pages without pixel count: %d   overlays: %d",
			t.ChangedPixels, t.PagesWithoutPixelCount, t.PagesWithOverlay)},
		summaryLine{9, fmt.Sprintf("Text changes: %d (inserts %d, deletes %d)   mapped boxes: %d",
			t.TextChangeSpans, t.Inserts, t.Deletes, t.MappedBoxes)},
		summaryLine{12, "Pages"},
		summaryLine{9, fmt.Sprintf("%-6s %10s %7s %6s %18s %s", "Page", "Pixels", "Spans", "Boxes", "Alignment", "Text (ref/cmp)")},
	)

	for i, p := range s.Pages {
		if i == maxTableRows {
			out = append(out, summaryLine{9, fmt.Sprintf("… %d more pages", len(s.Pages)-maxTableRows)})
			break
		}
		pixels := "n/a"
		if p.ChangedPixels >= 0 {
			pixels = fmt.Sprint(p.ChangedPixels)
		}
		out = append(out, summaryLine{9, fmt.Sprintf("%-6d %10s %7d %6d %18s %s/%s",
			p.PageIndex+1, pixels, p.TextChangeSpans, p.MappedBoxes, p.Alignment, p.ReferenceText, p.ComparisonText)})
	}

	if degs := s.Degradations(); len(degs) > 0 {
		out = append(out, summaryLine{12, "Degradations"})
		for _, d := range degs {
			out = append(out, summaryLine{9, fmt.Sprintf("Page %d: %s", d.PageIndex+1, textdiff.Short(d.String()))})
		}
	}

	if len(s.LineChanges) > 0 {
		out = append(out, summaryLine{12, "Line changes"})
		listed := 0
	pages:
		for _, pl := range s.LineChanges {
			for _, l := range pl.Lines {
				if listed == c.opts.SummaryMaxLines {
					break pages
				}
				out = append(out, summaryLine{8, fmt.Sprintf("p%d L%d: %s -> %s",
					pl.PageIndex+1, l.Line, textdiff.Short(l.Old), textdiff.Short(l.New))})
				listed++
			}
		}
	}

	if len(s.Signals) > 0 {
		out = append(out, summaryLine{12, "Minima changes"})
		for _, ps := range s.Signals {
			for _, ch := range ps.Changes {
				out = append(out, summaryLine{9, fmt.Sprintf("Page %d  %s", ps.PageIndex+1, signals.Line(ch))})
			}
		}
	}
	return out
}
