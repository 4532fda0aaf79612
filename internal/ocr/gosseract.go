//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/spherical/pdf-diff/internal/domain"
)

// Available reports whether the in-process Tesseract engine was compiled in.
const Available = true

// Gosseract runs Tesseract in-process through the gosseract bindings.
// Each call uses its own client so concurrent pages never share state.
type Gosseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewGosseract constructs an in-process Tesseract engine.
func NewGosseract(languages []string) *Gosseract {
	return &Gosseract{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Gosseract) Name() string { return "gosseract" }

// Recognize performs OCR on the PNG at imagePath.
func (e *Gosseract) Recognize(ctx context.Context, imagePath string) (domain.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OCRResult{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return domain.OCRResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return domain.OCRResult{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]domain.WordBox, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, domain.WordBox{
			Text:       b.Word,
			Box:        domain.Rect{Left: b.Box.Min.X, Top: b.Box.Min.Y, Width: b.Box.Dx(), Height: b.Box.Dy()},
			Confidence: clampConfidence(b.Confidence),
		})
	}

	return domain.OCRResult{Text: strings.TrimSpace(text), Words: cleanWords(words)}, nil
}
