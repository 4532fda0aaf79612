// Package compare runs the two-document comparison pipeline.
package compare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf-diff/internal/config"
	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
	"github.com/spherical/pdf-diff/internal/raster"
	"github.com/spherical/pdf-diff/internal/report"
)

const (
	// OutputFileName is the composed document written into the output directory.
	OutputFileName = "diff.pdf"
	// SummaryFileName is the JSON summary written next to it.
	SummaryFileName = "summary.json"

	refPrefix = "reference"
	cmpPrefix = "comparison"
)

// Page-count policies.
const (
	PagePolicyPad    = config.PagePolicyPad
	PagePolicyStrict = config.PagePolicyStrict
)

// TextExtractor produces per-page diff text and word geometry.
type TextExtractor interface {
	NativeTexts(ctx context.Context, docPath string) ([]string, []domain.Degradation)
	PageText(ctx context.Context, raster domain.RasterImage, native string, wantWords bool) (domain.PageText, []domain.Degradation)
}

// Composer writes the annotated output document.
type Composer interface {
	Compose(ctx context.Context, outPath string, results []domain.PageResult, summary report.Summary) ([]domain.Degradation, error)
	Attach(outPath, summaryJSON string) *domain.Degradation
}

// RunStore persists finished runs.
type RunStore interface {
	Save(ctx context.Context, s report.Summary) (uuid.UUID, error)
}

// Options controls one comparison run.
type Options struct {
	OutputDir  string
	DPI        float64
	Workers    int
	PagePolicy string
	Signals    bool
}

// Result is what a finished comparison hands back to the caller.
type Result struct {
	RunID       string
	OutputPath  string
	SummaryPath string
	Overlays    []string
	Summary     report.Summary
	Stats       domain.ProcessingStats
}

// Service orchestrates the comparison of two documents.
type Service struct {
	rasterizer domain.Rasterizer
	text       TextExtractor
	pages      *PageComparer
	composer   Composer
	store      RunStore
	opts       Options
	logger     *observability.Logger
	now        func() time.Time
}

// NewService creates a comparison service. store may be nil.
func NewService(rasterizer domain.Rasterizer, text TextExtractor, pages *PageComparer, composer Composer, store RunStore, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PagePolicy == "" {
		opts.PagePolicy = PagePolicyPad
	}
	return &Service{
		rasterizer: rasterizer,
		text:       text,
		pages:      pages,
		composer:   composer,
		store:      store,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// document is one rendered input. rasters may grow past TotalPages when the
// document is padded.
type document struct {
	domain.Document
	rasters []domain.RasterImage
	texts   []string
}

// Process compares referencePath against comparisonPath. Fatal errors are
// returned before any output document is written; everything after
// rasterization degrades instead of failing.
func (s *Service) Process(ctx context.Context, referencePath, comparisonPath string, eventCh chan<- domain.StreamEvent) (*Result, error) {
	startTime := time.Now()
	runID := uuid.New().String()
	logger := s.logger.WithRun(runID)

	s.emitEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Comparing %s with %s", referencePath, comparisonPath),
		Timestamp: time.Now(),
	})

	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return nil, s.fail(ctx, logger, eventCh, domain.IOError(fmt.Sprintf("create output directory %s", s.opts.OutputDir), err))
	}

	ref, cmp, err := s.load(ctx, logger, referencePath, comparisonPath)
	if err != nil {
		return nil, s.fail(ctx, logger, eventCh, err)
	}

	padded, err := s.reconcilePageCounts(ref, cmp)
	if err != nil {
		removeRasters(ref.rasters, cmp.rasters)
		return nil, s.fail(ctx, logger, eventCh, err)
	}

	results := s.comparePages(ctx, logger, ref, cmp, padded, eventCh)
	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, logger, eventCh, err)
	}

	summary := report.Build(runID, results, s.now())
	summary.Reference = referencePath
	summary.Comparison = comparisonPath
	summary.Documents = []domain.Document{ref.Document, cmp.Document}
	summary.OutputPath = filepath.Join(s.opts.OutputDir, OutputFileName)
	summaryPath := filepath.Join(s.opts.OutputDir, SummaryFileName)

	composeDegradations, err := s.composer.Compose(ctx, summary.OutputPath, results, summary)
	if err != nil {
		return nil, s.fail(ctx, logger, eventCh, err)
	}
	summary.Document = composeDegradations
	for _, d := range composeDegradations {
		s.emitDegraded(ctx, eventCh, -1, d)
	}
	if err := summary.WriteJSON(summaryPath); err != nil {
		return nil, s.fail(ctx, logger, eventCh, err)
	}

	// An attach failure is recorded only in the on-disk copy.
	if d := s.composer.Attach(summary.OutputPath, summaryPath); d != nil {
		summary.Document = append(summary.Document, *d)
		s.emitDegraded(ctx, eventCh, -1, *d)
		if err := summary.WriteJSON(summaryPath); err != nil {
			logger.Warn().Err(err).Msg("Failed to record attachment failure in summary")
		}
	}

	if s.store != nil {
		if _, err := s.store.Save(ctx, summary); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run history")
		}
	}

	result := &Result{
		RunID:       runID,
		OutputPath:  summary.OutputPath,
		SummaryPath: summaryPath,
		Summary:     summary,
		Stats: domain.ProcessingStats{
			TotalTime:     time.Since(startTime),
			PagesCompared: len(results),
			PaddedPages:   summary.Totals.PaddedPages,
			DegradedPages: summary.Totals.DegradedPages,
		},
	}
	for _, r := range results {
		if r.PixelDiff.OverlayPath != "" {
			result.Overlays = append(result.Overlays, r.PixelDiff.OverlayPath)
		}
	}

	s.emitEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Payload:   result,
		Timestamp: time.Now(),
	})

	logger.Info().
		Int("pages", len(results)).
		Int("changed_pixels", summary.Totals.ChangedPixels).
		Int("text_changes", summary.Totals.TextChangeSpans).
		Int("mapped_boxes", summary.Totals.MappedBoxes).
		Dur("duration", result.Stats.TotalTime).
		Msg("Comparison complete")

	return result, nil
}

// load renders both documents and reads their text layers concurrently.
// If either document fails to render, the other's rasters are removed.
func (s *Service) load(ctx context.Context, logger *observability.Logger, refPath, cmpPath string) (*document, *document, error) {
	ref := &document{Document: domain.Document{FilePath: refPath}}
	cmp := &document{Document: domain.Document{FilePath: cmpPath}}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range []struct {
		doc    *document
		prefix string
	}{{ref, refPrefix}, {cmp, cmpPrefix}} {
		g.Go(func() error {
			rasters, err := s.rasterizer.Render(gctx, job.doc.FilePath, s.opts.DPI, s.opts.OutputDir, job.prefix)
			if err != nil {
				return fmt.Errorf("%s document: %w", job.prefix, err)
			}
			job.doc.rasters = rasters
			job.doc.TotalPages = len(rasters)
			logger.Info().Str("document", job.prefix).Int("pages", len(rasters)).Msg("Rendered document")

			texts, degradations := s.text.NativeTexts(gctx, job.doc.FilePath)
			job.doc.texts = texts
			for _, d := range degradations {
				logger.WithStage(d.Stage).Debug().Str("document", job.prefix).Str("strategy", d.Strategy).Str("reason", d.Reason).Msg("Native text source skipped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		removeRasters(ref.rasters, cmp.rasters)
		return nil, nil, err
	}
	return ref, cmp, nil
}

// reconcilePageCounts applies the page-count policy. Under pad, the shorter
// document gains blank white pages sized like the counterpart page; the
// returned set holds the padded indices.
func (s *Service) reconcilePageCounts(ref, cmp *document) (map[int]bool, error) {
	nr, nc := len(ref.rasters), len(cmp.rasters)
	if nr == nc {
		return nil, nil
	}
	if s.opts.PagePolicy == PagePolicyStrict {
		return nil, domain.ValidationError(
			fmt.Sprintf("page counts differ: reference has %d, comparison has %d", nr, nc), nil)
	}

	padded := make(map[int]bool)
	pad := func(short, long *document, prefix string) error {
		for i := len(short.rasters); i < len(long.rasters); i++ {
			counterpart := long.rasters[i]
			blank, err := raster.Blank(s.opts.OutputDir, prefix, i, counterpart.Width, counterpart.Height)
			if err != nil {
				return domain.IOError(fmt.Sprintf("pad page %d", i+1), err)
			}
			short.rasters = append(short.rasters, blank)
			padded[i] = true
		}
		return nil
	}

	if nr < nc {
		return padded, pad(ref, cmp, refPrefix)
	}
	return padded, pad(cmp, ref, cmpPrefix)
}

// comparePages runs the bounded worker pool. Each worker writes only its own
// slot, so results need no lock and come back in page order.
func (s *Service) comparePages(ctx context.Context, logger *observability.Logger, ref, cmp *document, padded map[int]bool, eventCh chan<- domain.StreamEvent) []domain.PageResult {
	n := len(ref.rasters)
	results := make([]domain.PageResult, n)

	workChan := make(chan int, n)
	for i := 0; i < n; i++ {
		workChan <- i
	}
	close(workChan)

	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers && w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workChan {
				if ctx.Err() != nil {
					return
				}

				s.emitEvent(ctx, eventCh, domain.StreamEvent{
					Type:       domain.EventPageProcessing,
					PageNumber: i + 1,
					Payload:    domain.PageProgress{Page: i + 1, Total: n},
					Timestamp:  time.Now(),
				})

				input := PageInput{
					Index:      i,
					Reference:  ref.rasters[i],
					Comparison: cmp.rasters[i],
					RefNative:  textAt(ref.texts, i),
					CmpNative:  textAt(cmp.texts, i),
					Padded:     padded[i],
				}
				results[i] = s.pages.Compare(ctx, input, logger.WithPage(i))

				for _, d := range results[i].Degradations {
					s.emitDegraded(ctx, eventCh, i+1, d)
				}
				s.emitEvent(ctx, eventCh, domain.StreamEvent{
					Type:       domain.EventPageComplete,
					PageNumber: i + 1,
					Payload:    report.Page(results[i]),
					Timestamp:  time.Now(),
				})
			}
		}()
	}
	wg.Wait()

	return results
}

func textAt(texts []string, i int) string {
	if i < len(texts) {
		return texts[i]
	}
	return ""
}

func removeRasters(sets ...[]domain.RasterImage) {
	for _, set := range sets {
		for _, r := range set {
			if r.Path != "" {
				os.Remove(r.Path)
			}
		}
	}
}

func (s *Service) fail(ctx context.Context, logger *observability.Logger, eventCh chan<- domain.StreamEvent, err error) error {
	logger.Error().Err(err).Bool("capability_missing", domain.IsCapabilityMissing(err)).Msg("Comparison failed")
	s.emitError(ctx, eventCh, err)
	return err
}

// emitEvent delivers an event unless the run is cancelled first.
func (s *Service) emitEvent(ctx context.Context, eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	select {
	case eventCh <- event:
	case <-ctx.Done():
		s.logger.Debug().Str("event", string(event.Type)).Msg("Run cancelled, dropping event")
	}
}

func (s *Service) emitDegraded(ctx context.Context, eventCh chan<- domain.StreamEvent, page int, d domain.Degradation) {
	s.emitEvent(ctx, eventCh, domain.StreamEvent{
		Type:       domain.EventDegraded,
		PageNumber: max(page, 0),
		Payload:    d,
		Timestamp:  time.Now(),
	})
}

// emitError emits an error event
func (s *Service) emitError(ctx context.Context, eventCh chan<- domain.StreamEvent, err error) {
	s.emitEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
