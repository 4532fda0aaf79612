// Package align registers a comparison page raster into the coordinate frame
// of its reference page.
package align

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
)

const (
	stageAlign        = "align"
	identityTolerance = 0.5
)

// Options tunes feature registration.
type Options struct {
	MinMatches      int
	MaxKeypoints    int
	WorkingSize     int
	RansacIters     int
	RansacTolerance float64 // pixels, at working scale
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MinMatches:      8,
		MaxKeypoints:    600,
		WorkingSize:     1000,
		RansacIters:     2000,
		RansacTolerance: 3,
	}
}

// Aligner runs the registration strategy chain. It never fails.
type Aligner struct {
	opts   Options
	logger *observability.Logger
}

// New creates an Aligner. Zero option fields take their defaults.
func New(opts Options, logger *observability.Logger) *Aligner {
	def := DefaultOptions()
	if opts.MinMatches < 4 {
		opts.MinMatches = def.MinMatches
	}
	if opts.MaxKeypoints <= 0 {
		opts.MaxKeypoints = def.MaxKeypoints
	}
	if opts.WorkingSize <= 0 {
		opts.WorkingSize = def.WorkingSize
	}
	if opts.RansacIters <= 0 {
		opts.RansacIters = def.RansacIters
	}
	if opts.RansacTolerance <= 0 {
		opts.RansacTolerance = def.RansacTolerance
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Aligner{opts: opts, logger: logger.WithStage(stageAlign)}
}

type aligned struct {
	img    *image.RGBA
	result domain.AlignmentResult
}

// Align returns cmp mapped into ref's frame, which strategy produced it, and
// the strategies that were tried and failed on the way.
func (a *Aligner) Align(ref, cmp *image.RGBA) (*image.RGBA, domain.AlignmentResult, []domain.Degradation) {
	if cmp == nil {
		cmp = whitePage(ref)
	}

	chain := domain.RunChain(stageAlign, []domain.Strategy[aligned]{
		{Name: string(domain.AlignRegistered), Run: func() domain.Outcome[aligned] { return a.register(ref, cmp) }},
		{Name: string(domain.AlignDimensionMatched), Run: func() domain.Outcome[aligned] { return forceDimensions(ref, cmp) }},
		{Name: string(domain.AlignIdentity), Run: func() domain.Outcome[aligned] { return identity(ref, cmp) }},
		{Name: string(domain.AlignFailedCopy), Run: func() domain.Outcome[aligned] { return failedCopy(cmp) }},
	})

	for _, d := range chain.Degradations {
		a.logger.Debug().Str("strategy", d.Strategy).Str("reason", d.Reason).Msg("Alignment strategy skipped")
	}

	if !chain.OK {
		// failed-copy only fails on a panic
		return cmp, domain.AlignmentResult{Strategy: domain.AlignFailedCopy}, chain.Degradations
	}
	return chain.Value.img, chain.Value.result, chain.Degradations
}

func (a *Aligner) register(ref, cmp *image.RGBA) domain.Outcome[aligned] {
	if ref == nil {
		return domain.Degraded[aligned]("no reference raster")
	}

	refGray, srx, sry := workingGray(ref, a.opts.WorkingSize)
	cmpGray, scx, scy := workingGray(cmp, a.opts.WorkingSize)

	refKps := detectCorners(refGray, a.opts.MaxKeypoints)
	cmpKps := detectCorners(cmpGray, a.opts.MaxKeypoints)
	if len(refKps) == 0 && len(cmpKps) == 0 {
		return domain.Skipped[aligned]("both pages are blank")
	}
	if len(refKps) < a.opts.MinMatches || len(cmpKps) < a.opts.MinMatches {
		return domain.Degraded[aligned]("too few keypoints (%d reference, %d comparison)", len(refKps), len(cmpKps))
	}

	matches := matchDescriptors(describe(refGray, refKps), describe(cmpGray, cmpKps))
	if len(matches) < a.opts.MinMatches {
		return domain.Degraded[aligned]("too few matches (%d < %d)", len(matches), a.opts.MinMatches)
	}

	src := make([]point, len(matches))
	dst := make([]point, len(matches))
	for i, m := range matches {
		src[i] = point{float64(refKps[m.ref].x), float64(refKps[m.ref].y)}
		dst[i] = point{float64(cmpKps[m.cmp].x), float64(cmpKps[m.cmp].y)}
	}

	h, inliers, ok := ransac(src, dst, a.opts.RansacIters, a.opts.RansacTolerance)
	if !ok || len(inliers) < a.opts.MinMatches {
		return domain.Degraded[aligned]("too few inliers (%d < %d)", len(inliers), a.opts.MinMatches)
	}

	rb, cb := ref.Bounds(), cmp.Bounds()
	full := h.rescale(srx, sry, scx, scy)
	if !plausible(full, rb.Dx(), rb.Dy(), cb.Dx(), cb.Dy()) {
		return domain.Degraded[aligned]("implausible transform")
	}

	a.logger.Debug().
		Str("transform", full.String()).
		Int("matches", len(matches)).
		Int("inliers", len(inliers)).
		Msg("Registration converged")

	if rb.Size() == cb.Size() && nearIdentity(full, rb.Dx(), rb.Dy(), identityTolerance) {
		return domain.Succeeded(aligned{
			img:    cmp,
			result: domain.AlignmentResult{Strategy: domain.AlignIdentity, Success: true, Inliers: len(inliers)},
		})
	}

	return domain.Succeeded(aligned{
		img:    warpInto(cmp, full, rb.Dx(), rb.Dy()),
		result: domain.AlignmentResult{Strategy: domain.AlignRegistered, Success: true, Inliers: len(inliers)},
	})
}

func forceDimensions(ref, cmp *image.RGBA) domain.Outcome[aligned] {
	if ref == nil {
		return domain.Degraded[aligned]("no reference raster")
	}
	if ref.Bounds().Size() == cmp.Bounds().Size() {
		return domain.Skipped[aligned]("dimensions already match")
	}
	rb := ref.Bounds()
	return domain.Succeeded(aligned{
		img:    resizeTo(cmp, rb.Dx(), rb.Dy()),
		result: domain.AlignmentResult{Strategy: domain.AlignDimensionMatched, Success: true},
	})
}

func identity(ref, cmp *image.RGBA) domain.Outcome[aligned] {
	if ref == nil || ref.Bounds().Size() != cmp.Bounds().Size() {
		return domain.Degraded[aligned]("dimensions differ")
	}
	return domain.Succeeded(aligned{
		img:    cmp,
		result: domain.AlignmentResult{Strategy: domain.AlignIdentity, Success: true},
	})
}

func failedCopy(cmp *image.RGBA) domain.Outcome[aligned] {
	return domain.Succeeded(aligned{
		img:    cloneRGBA(cmp),
		result: domain.AlignmentResult{Strategy: domain.AlignFailedCopy, Success: false},
	})
}

func whitePage(ref *image.RGBA) *image.RGBA {
	r := image.Rect(0, 0, 1, 1)
	if ref != nil {
		r = image.Rect(0, 0, ref.Bounds().Dx(), ref.Bounds().Dy())
	}
	img := image.NewRGBA(r)
	draw.Draw(img, r, image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// String renders the transform for debug logs.
func (h homography) String() string {
	return fmt.Sprintf("[%.4f %.4f %.2f; %.4f %.4f %.2f; %.6f %.6f %.2f]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}
