package compose

import (
	"context"
	"fmt"
	"image/color"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
	"github.com/spherical/pdf-diff/internal/report"
)

const stageCompose = "compose"

// Options controls the composed document.
type Options struct {
	DPI             float64
	BoxColor        color.RGBA
	BoxOpacity      float64
	SummaryMaxLines int
	AttachSummary   bool
	Title           string
}

// DefaultOptions returns the documented composition defaults.
func DefaultOptions() Options {
	return Options{
		DPI:             300,
		BoxColor:        color.RGBA{R: 255, A: 255},
		BoxOpacity:      0.25,
		SummaryMaxLines: 25,
		AttachSummary:   true,
		Title:           "PDF comparison",
	}
}

// Composer writes the annotated output document.
type Composer struct {
	opts      Options
	newCanvas func(title string) Canvas
	finalize  func(outPath string, wantPages int) []domain.Degradation
	attach    func(outPath, file string) error
	logger    *observability.Logger
}

// New returns a Composer that renders through fpdf and finalizes with pdfcpu.
func New(opts Options, logger *observability.Logger) *Composer {
	c := NewWithCanvas(opts, NewPDFCanvas, logger)
	c.finalize = finalize
	c.attach = attach
	return c
}

// NewWithCanvas returns a Composer drawing onto canvases made by newCanvas.
func NewWithCanvas(opts Options, newCanvas func(title string) Canvas, logger *observability.Logger) *Composer {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultOptions().DPI
	}
	return &Composer{opts: opts, newCanvas: newCanvas, logger: logger.WithStage(stageCompose)}
}

// Compose renders results in page order followed by the summary page and
// writes the document to outPath. Drawing problems on individual pages are
// returned as degradations; only a failure to write the document is an error.
func (c *Composer) Compose(ctx context.Context, outPath string, results []domain.PageResult, summary report.Summary) ([]domain.Degradation, error) {
	canvas := c.newCanvas(c.opts.Title)
	scale := pointsPerInch / c.opts.DPI

	var degradations []domain.Degradation
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return degradations, err
		}
		degradations = append(degradations, c.drawPage(canvas, r, scale)...)
	}

	c.drawSummary(canvas, summary)

	if err := canvas.Close(outPath); err != nil {
		c.logger.Error().Err(err).Str("path", outPath).Msg("Failed to write output document")
		return degradations, domain.CompositionError(fmt.Sprintf("write %s", outPath), err)
	}

	if c.finalize != nil {
		degradations = append(degradations, c.finalize(outPath, len(results)+1)...)
	}
	for _, d := range degradations {
		c.logger.Warn().Str("strategy", d.Strategy).Str("reason", d.Reason).Msg("Stage degraded")
	}

	c.logger.Info().Str("path", outPath).Int("pages", len(results)+1).Msg("Output document written")
	return degradations, nil
}

func (c *Composer) drawPage(canvas Canvas, r domain.PageResult, scale float64) []domain.Degradation {
	base := r.Aligned
	if base.Path == "" {
		base = r.Reference
	}
	width, height := r.Reference.Width, r.Reference.Height
	if width <= 0 || height <= 0 {
		width, height = base.Width, base.Height
	}
	if width <= 0 || height <= 0 {
		width, height = int(summaryWidth/scale), int(summaryHeight/scale)
	}

	pageW, pageH := float64(width)*scale, float64(height)*scale
	full := PointRect{W: pageW, H: pageH}
	canvas.AddPage(pageW, pageH)

	var degradations []domain.Degradation
	degrade := func(strategy string, err error) {
		degradations = append(degradations, domain.Degradation{
			Stage:    stageCompose,
			Strategy: strategy,
			Reason:   fmt.Sprintf("page %d: %v", r.PageIndex+1, err),
		})
	}

	if base.Path != "" {
		if err := canvas.DrawImage(base.Path, full); err != nil {
			degrade("base-raster", err)
		}
	}
	if r.PixelDiff.OverlayPath != "" {
		if err := canvas.DrawImage(r.PixelDiff.OverlayPath, full); err != nil {
			degrade("overlay", err)
		}
	}

	for _, rec := range r.Changes {
		if rec.Box.Empty() {
			continue
		}
		box := toPoints(rec.Box, scale, pageH)
		canvas.FillRect(box, c.opts.BoxColor, c.opts.BoxOpacity)
		canvas.StrokeRect(box, c.opts.BoxColor, 1)
	}

	canvas.Text(6, 6, 8, pageLabel(r))
	return degradations
}

func pageLabel(r domain.PageResult) string {
	label := fmt.Sprintf("Page %d  alignment: %s", r.PageIndex+1, r.Alignment.Strategy)
	if r.PixelDiff.ChangedPixels >= 0 {
		label += fmt.Sprintf("  changed pixels: %d", r.PixelDiff.ChangedPixels)
	}
	if n := len(r.Changes); n > 0 {
		label += fmt.Sprintf("  text boxes: %d", n)
	}
	if r.Padded {
		label += "  (missing in one document)"
	}
	return label
}

// Attach embeds the final summary JSON into the written document. It returns
// a degradation when embedding fails and nil when it succeeds or is disabled.
func (c *Composer) Attach(outPath, summaryJSON string) *domain.Degradation {
	if !c.opts.AttachSummary || c.attach == nil || summaryJSON == "" {
		return nil
	}
	if err := c.attach(outPath, summaryJSON); err != nil {
		c.logger.Warn().Err(err).Str("path", outPath).Msg("Failed to attach summary")
		return &domain.Degradation{Stage: stageCompose, Strategy: "attach-summary", Reason: err.Error()}
	}
	return nil
}
