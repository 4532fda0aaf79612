package textextract

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PlainText reads page text with the ledongthuc/pdf reader.
type PlainText struct{}

// NewPlainText creates the ledongthuc native text source.
func NewPlainText() *PlainText { return &PlainText{} }

func (s *PlainText) Name() string { return "ledongthuc" }

// PageTexts returns one string per page, in page order.
func (s *PlainText) PageTexts(ctx context.Context, docPath string) (texts []string, err error) {
	// The reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(docPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	texts = make([]string, r.NumPage())
	for i := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i] = text
	}
	return texts, nil
}
