package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
)

// Converter renders PDF pages to PNG rasters using go-fitz
type Converter struct {
	validator *Validator
	logger    *observability.Logger
}

// NewConverter creates a new PDF converter instance
func NewConverter(logger *observability.Logger) *Converter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Converter{
		validator: NewValidator(logger),
		logger:    logger.WithStage("raster"),
	}
}

// Render converts every page of docPath into <prefix>_page_NNN.png under outDir.
// On any failure the files already written for this document are removed.
func (c *Converter) Render(ctx context.Context, docPath string, dpi float64, outDir, prefix string) ([]domain.RasterImage, error) {
	if err := c.validator.ValidatePDFPath(docPath); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateDPI(dpi); err != nil {
		return nil, err
	}

	doc, err := openDocument(docPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.RasterizationError(fmt.Sprintf("%s has no pages", docPath), nil)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, domain.IOError("Failed to create output directory", err)
	}

	images := make([]domain.RasterImage, 0, pageCount)
	written := make([]string, 0, pageCount)
	cleanup := func() {
		for _, p := range written {
			_ = os.Remove(p)
		}
	}

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			cleanup()
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			cleanup()
			return nil, domain.RasterizationError(fmt.Sprintf("Failed to render page %d of %s", pageNum+1, docPath), err)
		}

		outputPath := filepath.Join(outDir, PageFileName(prefix, pageNum))
		if err := WritePNG(outputPath, img); err != nil {
			cleanup()
			return nil, domain.IOError(fmt.Sprintf("Failed to write page %d", pageNum+1), err)
		}
		written = append(written, outputPath)

		bounds := img.Bounds()
		images = append(images, domain.RasterImage{
			PageIndex: pageNum,
			Path:      outputPath,
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
		})
	}

	c.logger.Debug().
		Str("document", docPath).
		Int("pages", pageCount).
		Float64("dpi", dpi).
		Msg("Rendered document")

	return images, nil
}

// Name identifies the go-fitz text layer in degradation records.
func (c *Converter) Name() string { return "fitz" }

// PageTexts returns the embedded text layer of every page, in page order.
func (c *Converter) PageTexts(ctx context.Context, docPath string) ([]string, error) {
	doc, err := openDocument(docPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	texts := make([]string, doc.NumPage())
	for i := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, domain.ExtractionError(fmt.Sprintf("Failed to read text of page %d", i+1), err)
		}
		texts[i] = text
	}
	return texts, nil
}

// PageFileName returns the deterministic raster file name for a zero-based page index.
func PageFileName(prefix string, pageIndex int) string {
	return fmt.Sprintf("%s_page_%03d.png", prefix, pageIndex+1)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadPNG decodes the PNG at path into an RGBA buffer.
func ReadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an RGBA buffer with a zero origin, copying when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// openDocument maps go-fitz open failures onto the fatal error taxonomy.
func openDocument(docPath string) (*fitz.Document, error) {
	doc, err := fitz.New(docPath)
	if err == nil {
		return doc, nil
	}
	switch {
	case errors.Is(err, fitz.ErrCreateContext):
		return nil, domain.CapabilityError("MuPDF rendering context unavailable", err)
	case errors.Is(err, fitz.ErrNeedsPassword):
		return nil, domain.RasterizationError(fmt.Sprintf("%s is password protected", docPath), err)
	default:
		return nil, domain.RasterizationError(fmt.Sprintf("Failed to open %s", docPath), err)
	}
}
