package domain

import (
	"context"
	"image"
)

// Rasterizer renders every page of a document to a raster image
type Rasterizer interface {
	// Render writes one PNG per page into outDir and returns the handles in page order
	Render(ctx context.Context, docPath string, dpi float64, outDir, prefix string) ([]RasterImage, error)
}

// NativeTextSource reads the embedded text layer of a document, one string per page
type NativeTextSource interface {
	Name() string
	PageTexts(ctx context.Context, docPath string) ([]string, error)
}

// OCRResult is the output of a single OCR invocation
type OCRResult struct {
	Text  string
	Words []WordBox
}

// OCREngine recognizes text and word geometry on a page raster
type OCREngine interface {
	Name() string
	// Recognize runs OCR on the PNG at imagePath. Engines that cannot produce
	// geometry return words == nil.
	Recognize(ctx context.Context, imagePath string) (OCRResult, error)
}

// Aligner registers a comparison raster into the reference frame. It never fails.
type Aligner interface {
	Align(ref, cmp *image.RGBA) (*image.RGBA, AlignmentResult, []Degradation)
}

// PixelDiffer compares two equally sized rasters. It never fails.
type PixelDiffer interface {
	Diff(ref, cmp *image.RGBA) (PixelDiffResult, []Degradation)
}
