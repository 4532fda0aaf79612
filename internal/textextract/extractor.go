// Package textextract recovers per-page text from the embedded text layer,
// falling back to OCR on the page raster when the layer is missing or thin.
package textextract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
)

const (
	stageNative = "native-text"
	stageOCR    = "ocr"
)

// geometryReporter is implemented by engines that can tell whether they
// return word boxes.
type geometryReporter interface {
	ProducesGeometry() bool
}

// Extractor runs the native text chain per document and the OCR chain per page.
type Extractor struct {
	native   []domain.NativeTextSource
	engines  []domain.OCREngine
	minChars int
	logger   *observability.Logger
}

// NewExtractor builds an extractor. Sources and engines are tried in the given order.
func NewExtractor(native []domain.NativeTextSource, engines []domain.OCREngine, minChars int, logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Extractor{
		native:   native,
		engines:  engines,
		minChars: minChars,
		logger:   logger.WithStage("text"),
	}
}

// NativeTexts returns the embedded text of every page of docPath. The first
// source that yields any text wins; later sources fill pages it left empty.
// Failures never surface as errors: a document without a usable layer yields
// nil and every page falls through to OCR.
func (e *Extractor) NativeTexts(ctx context.Context, docPath string) ([]string, []domain.Degradation) {
	var (
		texts        []string
		degradations []domain.Degradation
	)

	for _, src := range e.native {
		got, err := safePageTexts(ctx, src, docPath)
		switch {
		case err != nil:
			degradations = append(degradations, e.degrade(stageNative, src.Name(), err.Error()))
			continue
		case !anyText(got):
			degradations = append(degradations, e.degrade(stageNative, src.Name(), "no embedded text"))
			continue
		}

		if texts == nil {
			texts = got
			if !anyEmpty(texts) {
				break
			}
			continue
		}

		for i := range texts {
			if i < len(got) && strings.TrimSpace(texts[i]) == "" {
				texts[i] = got[i]
			}
		}
		if !anyEmpty(texts) {
			break
		}
	}

	return texts, degradations
}

// PageText selects the diff text for one page. Native text is used when it has
// at least minChars non-space characters; otherwise OCR text replaces it. When
// wantWords is set, OCR also runs on sufficient native pages to provide word
// geometry, but its text is kept apart in OCRText.
func (e *Extractor) PageText(ctx context.Context, raster domain.RasterImage, native string, wantWords bool) (domain.PageText, []domain.Degradation) {
	pt := domain.PageText{
		PageIndex:  raster.PageIndex,
		NativeText: native,
		Source:     domain.TextSourceNone,
	}

	nativeOK := countNonSpace(native) >= e.minChars
	if nativeOK {
		pt.Text = native
		pt.Source = domain.TextSourceNative
		if !wantWords {
			return pt, nil
		}
	}

	res, engine, degradations := e.recognize(ctx, raster, nativeOK)
	pt.OCRText = res.Text
	pt.Words = withPage(res.Words, raster.PageIndex)
	pt.OCREngine = engine

	if !nativeOK {
		if strings.TrimSpace(res.Text) != "" {
			pt.Text = res.Text
			pt.Source = domain.TextSourceOCR
		} else if strings.TrimSpace(native) != "" {
			// Thin native text still beats nothing.
			pt.Text = native
			pt.Source = domain.TextSourceNative
		}
	}

	return pt, degradations
}

// recognize runs the OCR chain on the raster. When geometryOnly is set, engines
// that cannot return word boxes are skipped.
func (e *Extractor) recognize(ctx context.Context, raster domain.RasterImage, geometryOnly bool) (domain.OCRResult, string, []domain.Degradation) {
	if raster.Path == "" || len(e.engines) == 0 {
		return domain.OCRResult{}, "", nil
	}

	strategies := make([]domain.Strategy[domain.OCRResult], 0, len(e.engines))
	for _, engine := range e.engines {
		if geometryOnly {
			if g, ok := engine.(geometryReporter); ok && !g.ProducesGeometry() {
				continue
			}
		}
		strategies = append(strategies, domain.Strategy[domain.OCRResult]{
			Name: engine.Name(),
			Run: func() domain.Outcome[domain.OCRResult] {
				res, err := engine.Recognize(ctx, raster.Path)
				if err != nil {
					return domain.Degraded[domain.OCRResult]("%v", err)
				}
				if strings.TrimSpace(res.Text) == "" && len(res.Words) == 0 {
					return domain.Degraded[domain.OCRResult]("empty result")
				}
				if geometryOnly && len(res.Words) == 0 {
					return domain.Degraded[domain.OCRResult]("no word geometry")
				}
				return domain.Succeeded(res)
			},
		})
	}

	chain := domain.RunChain(stageOCR, strategies)
	for _, d := range chain.Degradations {
		e.logger.WithPage(raster.PageIndex).Warn().
			Str("strategy", d.Strategy).
			Str("reason", d.Reason).
			Msg("OCR engine degraded")
	}
	if !chain.OK {
		return domain.OCRResult{}, "", chain.Degradations
	}
	return chain.Value, chain.Strategy, chain.Degradations
}

func (e *Extractor) degrade(stage, strategy, reason string) domain.Degradation {
	e.logger.Warn().Str("strategy", strategy).Str("reason", reason).Msg("Native text source degraded")
	return domain.Degradation{Stage: stage, Strategy: strategy, Reason: reason}
}

// safePageTexts contains panics from third-party readers.
func safePageTexts(ctx context.Context, src domain.NativeTextSource, docPath string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.PageTexts(ctx, docPath)
}

func withPage(words []domain.WordBox, pageIndex int) []domain.WordBox {
	if len(words) == 0 {
		return nil
	}
	out := make([]domain.WordBox, len(words))
	for i, w := range words {
		w.PageIndex = pageIndex
		out[i] = w
	}
	return out
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func anyText(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func anyEmpty(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return true
		}
	}
	return false
}
