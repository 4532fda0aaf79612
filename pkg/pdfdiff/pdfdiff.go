// Package pdfdiff compares two PDF documents page by page and writes an
// annotated difference document, a JSON summary and per-page overlays.
package pdfdiff

import (
	"context"
	"image/color"
	"io"

	"github.com/spherical/pdf-diff/internal/align"
	"github.com/spherical/pdf-diff/internal/compare"
	"github.com/spherical/pdf-diff/internal/compose"
	"github.com/spherical/pdf-diff/internal/config"
	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/llm"
	"github.com/spherical/pdf-diff/internal/observability"
	"github.com/spherical/pdf-diff/internal/ocr"
	"github.com/spherical/pdf-diff/internal/pixeldiff"
	"github.com/spherical/pdf-diff/internal/raster"
	"github.com/spherical/pdf-diff/internal/report"
	"github.com/spherical/pdf-diff/internal/storage"
	"github.com/spherical/pdf-diff/internal/textdiff"
	"github.com/spherical/pdf-diff/internal/textextract"
)

// Re-export result and event types for the public API
type (
	StreamEvent  = domain.StreamEvent
	EventType    = domain.EventType
	PageProgress = domain.PageProgress
	Degradation  = domain.Degradation
	PageSummary  = domain.PageSummary
	Result       = compare.Result
	Summary      = report.Summary
	Totals       = report.Totals
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventDegraded       = domain.EventDegraded
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Page-count policies
const (
	PagePolicyPad    = config.PagePolicyPad
	PagePolicyStrict = config.PagePolicyStrict
)

// Options is the caller-facing options bundle. Zero fields keep the
// configured default (environment, then built-in).
type Options struct {
	OutputDir      string
	DPI            float64
	PixelThreshold float64
	HighlightColor string // hex, e.g. "#ff0000"
	Workers        int
	PagePolicy     string
	DatabasePath   string
	LogLevel       string
	LogOutput      io.Writer
}

// Client is the main entry point for the comparison library
type Client struct {
	service *compare.Service
	store   *storage.Store
	logger  *observability.Logger
}

// NewClient creates a client from environment configuration overlaid with opts.
func NewClient(opts Options) (*Client, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("load configuration", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid options", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: opts.LogOutput,
	})
	return NewClientWithConfig(context.Background(), cfg, logger)
}

func (o Options) apply(cfg *config.Config) {
	if o.OutputDir != "" {
		cfg.Output.Directory = o.OutputDir
	}
	if o.DPI > 0 {
		cfg.Raster.DPI = o.DPI
	}
	if o.PixelThreshold > 0 {
		cfg.PixelDiff.Threshold = o.PixelThreshold
	}
	if o.HighlightColor != "" {
		cfg.PixelDiff.HighlightColor = o.HighlightColor
	}
	if o.Workers > 0 {
		cfg.Pipeline.Workers = o.Workers
	}
	if o.PagePolicy != "" {
		cfg.Pipeline.PagePolicy = o.PagePolicy
	}
	if o.DatabasePath != "" {
		cfg.Storage.SQLitePath = o.DatabasePath
	}
	if o.LogLevel != "" {
		cfg.Observability.LogLevel = o.LogLevel
	}
}

// NewClientWithConfig wires every pipeline stage from a validated configuration.
func NewClientWithConfig(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Client, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	converter := raster.NewConverter(logger)
	extractor := textextract.NewExtractor(
		[]domain.NativeTextSource{converter, textextract.NewPdfcpuText(), textextract.NewPlainText()},
		ocrEngines(cfg, logger),
		cfg.Text.MinNativeChars,
		logger,
	)

	r, g, b := cfg.HighlightRGB()
	highlight := color.RGBA{R: r, G: g, B: b, A: 255}

	pages := compare.NewPageComparer(
		align.New(align.Options{
			MinMatches:      cfg.Align.MinMatches,
			MaxKeypoints:    cfg.Align.MaxKeypoints,
			WorkingSize:     cfg.Align.WorkingSize,
			RansacIters:     cfg.Align.RansacIters,
			RansacTolerance: cfg.Align.RansacTolerance,
		}, logger),
		pixeldiff.New(pixeldiff.Options{
			Threshold:        cfg.PixelDiff.Threshold,
			Highlight:        highlight,
			IncludeAntiAlias: cfg.PixelDiff.IncludeAntiAlias,
		}, logger),
		extractor,
		textdiff.New(cfg.Text.MaxSpanChars),
		cfg.Output.Directory,
		cfg.Signals.Enabled,
	)

	composer := compose.New(compose.Options{
		DPI:             cfg.Raster.DPI,
		BoxColor:        highlight,
		BoxOpacity:      cfg.Compose.BoxOpacity,
		SummaryMaxLines: cfg.Compose.SummaryMaxLines,
		AttachSummary:   cfg.Compose.AttachSummary,
		Title:           "PDF comparison",
	}, logger)

	client := &Client{logger: logger}

	var runs compare.RunStore
	if cfg.Storage.SQLitePath != "" {
		store, err := storage.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		client.store = store
		runs = store.Runs()
	}

	client.service = compare.NewService(converter, extractor, pages, composer, runs, compare.Options{
		OutputDir:  cfg.Output.Directory,
		DPI:        cfg.Raster.DPI,
		Workers:    cfg.Pipeline.Workers,
		PagePolicy: cfg.Pipeline.PagePolicy,
		Signals:    cfg.Signals.Enabled,
	}, logger)

	return client, nil
}

// ocrEngines returns the OCR chain in preference order.
func ocrEngines(cfg *config.Config, logger *observability.Logger) []domain.OCREngine {
	var engines []domain.OCREngine
	if ocr.Available {
		engines = append(engines, ocr.NewGosseract(cfg.OCR.Languages))
	}
	engines = append(engines, ocr.NewTesseractCLI(cfg.OCR.TesseractPath, cfg.OCR.Languages))
	if cfg.OCR.LLMAPIKey != "" {
		engines = append(engines, ocr.NewVisionLLM(llm.NewClient(cfg.OCR.LLMAPIKey, cfg.OCR.LLMModel, llm.WithLogger(logger))))
	}
	return engines
}

// Compare runs a full comparison and blocks until it finishes.
func (c *Client) Compare(ctx context.Context, referencePath, comparisonPath string) (*Result, error) {
	return c.service.Process(ctx, referencePath, comparisonPath, nil)
}

// Run compares the documents while sending progress events to eventCh, which
// the caller must drain. Nothing is sent after Run returns.
func (c *Client) Run(ctx context.Context, referencePath, comparisonPath string, eventCh chan<- StreamEvent) (*Result, error) {
	return c.service.Process(ctx, referencePath, comparisonPath, eventCh)
}

// Process runs a comparison in the background and streams its events. The
// channel is closed after the final complete or error event.
func (c *Client) Process(ctx context.Context, referencePath, comparisonPath string) (<-chan StreamEvent, error) {
	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)
		_, _ = c.service.Process(ctx, referencePath, comparisonPath, eventCh)
	}()

	return eventCh, nil
}

// Close releases the run history database, if any.
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Compare is a one-shot convenience wrapper around NewClient and Client.Compare.
func Compare(ctx context.Context, referencePath, comparisonPath string, opts Options) (*Result, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Compare(ctx, referencePath, comparisonPath)
}
