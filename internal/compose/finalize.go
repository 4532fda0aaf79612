package compose

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/spherical/pdf-diff/internal/domain"
)

// finalize validates the written document and checks its page count. Every
// failure is reported as a degradation.
func finalize(outPath string, wantPages int) []domain.Degradation {
	var degradations []domain.Degradation
	degrade := func(strategy string, err error) {
		degradations = append(degradations, domain.Degradation{Stage: stageCompose, Strategy: strategy, Reason: err.Error()})
	}

	if err := api.ValidateFile(outPath, nil); err != nil {
		degrade("validate", err)
		return degradations
	}

	n, err := api.PageCountFile(outPath)
	switch {
	case err != nil:
		degrade("page-count", err)
	case n != wantPages:
		degrade("page-count", fmt.Errorf("document has %d pages, expected %d", n, wantPages))
	}
	return degradations
}

func attach(outPath, file string) error {
	return api.AddAttachmentsFile(outPath, "", []string{file}, false, nil)
}
