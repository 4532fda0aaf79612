//go:build integration

package pdfdiff

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChart(t *testing.T, path string, pages ...[]string) {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, lines := range pages {
		pdf.AddPage()
		pdf.Rect(15, 15, 180, 260, "D")
		for i, line := range lines {
			pdf.Text(25, float64(40+i*10), line)
		}
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
}

func TestCompareRealDocuments(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.pdf")
	cmp := filepath.Join(dir, "cmp.pdf")

	writeChart(t, ref,
		[]string{"ILS OR LOC RWY 27", "DA 450 FT (400)", "RVR 550"},
		[]string{"MISSED APPROACH", "Climb straight ahead to 3000"},
	)
	writeChart(t, cmp,
		[]string{"ILS OR LOC RWY 27", "DA 470 FT (420)", "RVR 550", "Temporary obstacle crane"},
		[]string{"MISSED APPROACH", "Climb straight ahead to 3000"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := Compare(ctx, ref, cmp, Options{
		OutputDir:    filepath.Join(dir, "out"),
		DPI:          100,
		DatabasePath: filepath.Join(dir, "runs.db"),
		LogLevel:     "warn",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.Totals.Pages)
	assert.True(t, res.Summary.HasChanges())
	assert.Positive(t, res.Summary.Totals.Inserts)
	require.Len(t, res.Summary.Signals, 1)
	assert.Equal(t, 0, res.Summary.Signals[0].PageIndex)
	require.NotEmpty(t, res.Summary.Signals[0].Changes)
	assert.Equal(t, "DA", res.Summary.Signals[0].Changes[0].Key)
	assert.Equal(t, "(+20)", res.Summary.Signals[0].Changes[0].Delta)

	_, err = os.Stat(res.SummaryPath)
	require.NoError(t, err)

	n, err := api.PageCountFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
