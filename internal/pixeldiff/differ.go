// Package pixeldiff computes a perceptual change mask between two page rasters
// and renders it as a semi-transparent overlay.
package pixeldiff

import (
	"fmt"
	"image"
	"image/color"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
)

const (
	stagePixelDiff = "pixel-diff"

	StrategyPerceptual  = "perceptual"
	StrategyTransparent = "transparent-fallback"

	// overlayAlpha is the fixed 50% opacity of highlighted pixels.
	overlayAlpha = 128

	// maxYIQDelta is the largest possible YIQ distance between two colours.
	maxYIQDelta = 35215
)

// Options controls the comparison.
type Options struct {
	Threshold        float64 // 0..1, smaller is more sensitive
	Highlight        color.RGBA
	IncludeAntiAlias bool
}

// Differ is a pixelmatch-style perceptual differ.
type Differ struct {
	opts   Options
	logger *observability.Logger
}

// New creates a Differ.
func New(opts Options, logger *observability.Logger) *Differ {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Differ{opts: opts, logger: logger.WithStage(stagePixelDiff)}
}

// Diff compares ref and cmp. On any failure it returns a transparent overlay
// and a count of -1.
func (d *Differ) Diff(ref, cmp *image.RGBA) (domain.PixelDiffResult, []domain.Degradation) {
	chain := domain.RunChain(stagePixelDiff, []domain.Strategy[domain.PixelDiffResult]{
		{Name: StrategyPerceptual, Run: func() domain.Outcome[domain.PixelDiffResult] { return d.perceptual(ref, cmp) }},
		{Name: StrategyTransparent, Run: func() domain.Outcome[domain.PixelDiffResult] {
			return domain.Succeeded(transparentFallback(ref))
		}},
	})

	for _, deg := range chain.Degradations {
		d.logger.Warn().Str("strategy", deg.Strategy).Str("reason", deg.Reason).Msg("Pixel diff degraded")
	}

	if !chain.OK {
		return transparentFallback(nil), chain.Degradations
	}
	res := chain.Value
	res.Strategy = chain.Strategy
	return res, chain.Degradations
}

func (d *Differ) perceptual(ref, cmp *image.RGBA) domain.Outcome[domain.PixelDiffResult] {
	if ref == nil || cmp == nil {
		return domain.Degraded[domain.PixelDiffResult]("missing raster")
	}
	rb, cb := ref.Bounds(), cmp.Bounds()
	if rb.Size() != cb.Size() {
		return domain.Degraded[domain.PixelDiffResult]("dimension mismatch %dx%d vs %dx%d", rb.Dx(), rb.Dy(), cb.Dx(), cb.Dy())
	}

	a, b := normalize(ref), normalize(cmp)
	w, h := rb.Dx(), rb.Dy()
	overlay := image.NewNRGBA(image.Rect(0, 0, w, h))
	maxDelta := maxYIQDelta * d.opts.Threshold * d.opts.Threshold
	hl := color.NRGBA{R: d.opts.Highlight.R, G: d.opts.Highlight.G, B: d.opts.Highlight.B, A: overlayAlpha}

	changed := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := y*a.Stride + x*4
			delta := colorDelta(a.Pix, b.Pix, pos, pos, false)
			if abs(delta) <= maxDelta {
				continue
			}
			if !d.opts.IncludeAntiAlias && (antialiased(a, x, y, b) || antialiased(b, x, y, a)) {
				continue
			}
			changed++
			overlay.SetNRGBA(x, y, hl)
		}
	}

	return domain.Succeeded(domain.PixelDiffResult{
		ChangedPixels:    changed,
		OverlayGenerated: true,
		Overlay:          overlay,
	})
}

// transparentFallback builds the no-information result: a fully transparent
// overlay matching ref, or 1x1 when ref is unknown.
func transparentFallback(ref *image.RGBA) domain.PixelDiffResult {
	r := image.Rect(0, 0, 1, 1)
	if ref != nil && !ref.Bounds().Empty() {
		r = image.Rect(0, 0, ref.Bounds().Dx(), ref.Bounds().Dy())
	}
	return domain.PixelDiffResult{
		ChangedPixels:    -1,
		OverlayGenerated: false,
		Overlay:          image.NewNRGBA(r),
		Strategy:         StrategyTransparent,
	}
}

// normalize returns img with a zero origin so pixel offsets match between images.
func normalize(img *image.RGBA) *image.RGBA {
	if img.Bounds().Min == (image.Point{}) {
		return img
	}
	b := img.Bounds()
	return &image.RGBA{
		Pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		Stride: img.Stride,
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
}

// Describe is a short human readable rendering of a result for logs.
func Describe(r domain.PixelDiffResult) string {
	if r.ChangedPixels < 0 {
		return "no pixel count (" + r.Strategy + ")"
	}
	return fmt.Sprintf("%d changed pixels", r.ChangedPixels)
}
