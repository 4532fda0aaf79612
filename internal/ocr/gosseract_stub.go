//go:build !ocr

package ocr

import (
	"context"
	"errors"

	"github.com/spherical/pdf-diff/internal/domain"
)

// Available reports whether the in-process Tesseract engine was compiled in.
const Available = false

// ErrOCRNotEnabled is returned when the in-process engine was not compiled in.
// Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("in-process OCR not enabled; rebuild with -tags ocr")

// Gosseract is the stub used when the "ocr" build tag is not set.
type Gosseract struct{}

// NewGosseract returns the stub engine.
func NewGosseract(languages []string) *Gosseract { return &Gosseract{} }

func (e *Gosseract) Name() string { return "gosseract" }

// Recognize always fails with ErrOCRNotEnabled.
func (e *Gosseract) Recognize(ctx context.Context, imagePath string) (domain.OCRResult, error) {
	return domain.OCRResult{}, ErrOCRNotEnabled
}
