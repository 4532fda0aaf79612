package compare

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/localize"
	"github.com/spherical/pdf-diff/internal/observability"
	"github.com/spherical/pdf-diff/internal/pixeldiff"
	"github.com/spherical/pdf-diff/internal/raster"
	"github.com/spherical/pdf-diff/internal/signals"
	"github.com/spherical/pdf-diff/internal/textdiff"
)

const stagePage = "page"

// PageInput is everything one page worker needs.
type PageInput struct {
	Index      int
	Reference  domain.RasterImage
	Comparison domain.RasterImage
	RefNative  string
	CmpNative  string
	Padded     bool
}

// PageComparer runs the per-page stages: align, pixel diff, text, localize.
type PageComparer struct {
	aligner  domain.Aligner
	differ   domain.PixelDiffer
	text     TextExtractor
	textDiff *textdiff.Differ
	outDir   string
	signals  bool
}

// NewPageComparer wires the per-page stages. Intermediate rasters go to outDir.
func NewPageComparer(aligner domain.Aligner, differ domain.PixelDiffer, text TextExtractor, textDiff *textdiff.Differ, outDir string, withSignals bool) *PageComparer {
	return &PageComparer{
		aligner:  aligner,
		differ:   differ,
		text:     text,
		textDiff: textDiff,
		outDir:   outDir,
		signals:  withSignals,
	}
}

// Compare never fails: every problem ends up in the result's degradations.
func (p *PageComparer) Compare(ctx context.Context, in PageInput, logger *observability.Logger) domain.PageResult {
	res := domain.PageResult{
		PageIndex: in.Index,
		Reference: in.Reference,
		Padded:    in.Padded,
	}
	degrade := func(strategy string, err error) {
		res.Degradations = append(res.Degradations, domain.Degradation{Stage: stagePage, Strategy: strategy, Reason: err.Error()})
	}

	refImg, err := pixels(in.Reference)
	if err != nil {
		degrade("read-reference", err)
	}
	cmpImg, err := pixels(in.Comparison)
	if err != nil {
		degrade("read-comparison", err)
	}

	alignedImg, alignment, degs := p.aligner.Align(refImg, cmpImg)
	res.Alignment = alignment
	res.Degradations = append(res.Degradations, degs...)

	res.Aligned = domain.RasterImage{PageIndex: in.Index}
	if alignedImg != nil {
		size := alignedImg.Bounds().Size()
		res.Aligned.Width, res.Aligned.Height = size.X, size.Y
		path := filepath.Join(p.outDir, raster.PageFileName("aligned", in.Index))
		if err := raster.WritePNG(path, alignedImg); err != nil {
			degrade("write-aligned", err)
		} else {
			res.Aligned.Path = path
		}
	}

	diff, degs := p.differ.Diff(refImg, alignedImg)
	res.Degradations = append(res.Degradations, degs...)
	if diff.Overlay != nil {
		path := filepath.Join(p.outDir, raster.PageFileName("overlay", in.Index))
		if err := raster.WritePNG(path, diff.Overlay); err != nil {
			degrade("write-overlay", err)
		} else {
			diff.OverlayPath = path
		}
		diff.Overlay = nil
	}
	res.PixelDiff = diff

	refText, degs := p.text.PageText(ctx, in.Reference, in.RefNative, false)
	res.Degradations = append(res.Degradations, degs...)

	geometrySource := res.Aligned
	if geometrySource.Path == "" {
		geometrySource = in.Comparison
	}
	cmpText, degs := p.text.PageText(ctx, geometrySource, in.CmpNative, true)
	res.Degradations = append(res.Degradations, degs...)
	res.RefText, res.CmpText = refText, cmpText

	spans := p.textDiff.Diff(refText.Text, cmpText.Text)
	res.Spans = textdiff.Changes(spans)
	res.Changes = localize.Localize(in.Index, textdiff.Inserts(spans), cmpText.Words)
	res.Lines = textdiff.Lines(refText.Text, cmpText.Text)
	if p.signals {
		res.Signals = signals.Compare(refText.Text, cmpText.Text)
	}

	res.Reference.Image = nil

	logger.Debug().
		Str("alignment", string(alignment.Strategy)).
		Str("pixels", pixeldiff.Describe(diff)).
		Int("spans", len(res.Spans)).
		Int("boxes", len(res.Changes)).
		Int("degradations", len(res.Degradations)).
		Msg("Page compared")

	return res
}

func pixels(r domain.RasterImage) (*image.RGBA, error) {
	if r.Image != nil {
		return r.Image, nil
	}
	if r.Path == "" {
		return nil, fmt.Errorf("page %d has no raster", r.PageIndex+1)
	}
	return raster.ReadPNG(r.Path)
}
