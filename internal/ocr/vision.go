package ocr

import (
	"context"

	"github.com/spherical/pdf-diff/internal/domain"
)

// Transcriber turns a page image into plain text
type Transcriber interface {
	Transcribe(ctx context.Context, imagePath string) (string, error)
}

// VisionLLM recovers page text through a vision model. It produces no word
// geometry, so pages read this way cannot be localized.
type VisionLLM struct {
	client Transcriber
}

// NewVisionLLM wraps a transcription client as an OCR engine.
func NewVisionLLM(client Transcriber) *VisionLLM {
	return &VisionLLM{client: client}
}

func (e *VisionLLM) Name() string { return "vision-llm" }

// ProducesGeometry reports that transcriptions carry no word boxes.
func (e *VisionLLM) ProducesGeometry() bool { return false }

// Recognize returns the transcription with a nil word list.
func (e *VisionLLM) Recognize(ctx context.Context, imagePath string) (domain.OCRResult, error) {
	text, err := e.client.Transcribe(ctx, imagePath)
	if err != nil {
		return domain.OCRResult{}, err
	}
	return domain.OCRResult{Text: text}, nil
}
