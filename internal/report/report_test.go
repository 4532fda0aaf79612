package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
)

func results() []domain.PageResult {
	return []domain.PageResult{
		{
			PageIndex: 0,
			Alignment: domain.AlignmentResult{Strategy: domain.AlignIdentity, Success: true},
			PixelDiff: domain.PixelDiffResult{ChangedPixels: 0, OverlayGenerated: true},
			RefText:   domain.PageText{Source: domain.TextSourceNative},
			CmpText:   domain.PageText{Source: domain.TextSourceNative},
		},
		{
			PageIndex: 1,
			Alignment: domain.AlignmentResult{Strategy: domain.AlignRegistered, Success: true, Inliers: 40},
			PixelDiff: domain.PixelDiffResult{ChangedPixels: 350, OverlayGenerated: true, OverlayPath: "out/overlay_page_002.png"},
			RefText:   domain.PageText{Source: domain.TextSourceNative},
			CmpText:   domain.PageText{Source: domain.TextSourceOCR},
			Spans: []domain.DiffSpan{
				{Op: domain.DiffInsert, Text: " Circling is not authorised.", Position: 1},
				{Op: domain.DiffDelete, Text: "450", Position: 3},
				{Op: domain.DiffInsert, Text: "500", Position: 4},
			},
			Changes: []domain.ChangeRecord{
				{PageIndex: 1, Box: domain.Rect{Left: 1, Top: 1, Width: 10, Height: 10}, Kind: domain.ChangeInsert},
				{PageIndex: 1, Box: domain.Rect{Left: 20, Top: 1, Width: 10, Height: 10}, Kind: domain.ChangeInsert},
			},
			Lines:   []domain.LineChange{{Line: 3, Old: "DA 450 FT", New: "DA 500 FT"}},
			Signals: []domain.SignalChange{{Key: "DA", Old: "450", New: "500", Delta: "(+50)"}},
		},
		{
			PageIndex:    2,
			Padded:       true,
			Alignment:    domain.AlignmentResult{Strategy: domain.AlignFailedCopy},
			PixelDiff:    domain.PixelDiffResult{ChangedPixels: -1, Strategy: "transparent-fallback"},
			RefText:      domain.PageText{Source: domain.TextSourceNone},
			CmpText:      domain.PageText{Source: domain.TextSourceNone},
			Degradations: []domain.Degradation{{Stage: "pixel-diff", Strategy: "perceptual", Reason: "dimension mismatch"}},
			Changes:      []domain.ChangeRecord{{PageIndex: 2, Kind: domain.ChangeInsert}},
		},
	}
}

func TestBuild_Totals(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	s := Build("run-1", results(), at)

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, time.UTC, s.GeneratedAt.Location())
	require.Len(t, s.Pages, 3)

	assert.Equal(t, Totals{
		Pages:                  3,
		ChangedPixels:          350,
		PagesWithoutPixelCount: 1,
		PagesWithOverlay:       2,
		PagesWithChanges:       1,
		TextChangeSpans:        3,
		Inserts:                2,
		Deletes:                1,
		MappedBoxes:            3,
		DegradedPages:          1,
		PaddedPages:            1,
	}, s.Totals)
	assert.True(t, s.HasChanges())
}

func TestBuild_TotalsEqualPageSums(t *testing.T) {
	s := Build("run", results(), time.Now())

	var boxes, spans int
	for _, p := range s.Pages {
		boxes += p.MappedBoxes
		spans += p.TextChangeSpans
	}
	assert.Equal(t, boxes, s.Totals.MappedBoxes)
	assert.Equal(t, spans, s.Totals.TextChangeSpans)
}

func TestBuild_PageRecord(t *testing.T) {
	s := Build("run", results(), time.Now())
	p := s.Pages[1]

	assert.Equal(t, 1, p.PageIndex)
	assert.Equal(t, 350, p.ChangedPixels)
	assert.Equal(t, 2, p.Inserts)
	assert.Equal(t, 1, p.Deletes)
	assert.Equal(t, 2, p.MappedBoxes)
	assert.Equal(t, domain.AlignRegistered, p.Alignment)
	assert.Equal(t, domain.TextSourceOCR, p.ComparisonText)

	require.Len(t, s.LineChanges, 1)
	assert.Equal(t, 1, s.LineChanges[0].PageIndex)
	require.Len(t, s.Signals, 1)
	assert.Equal(t, "DA", s.Signals[0].Changes[0].Key)

	degs := s.Degradations()
	require.Len(t, degs, 1)
	assert.Equal(t, 2, degs[0].PageIndex)
	assert.Equal(t, "pixel-diff", degs[0].Stage)
}

func TestBuild_Empty(t *testing.T) {
	s := Build("run", nil, time.Now())
	assert.Empty(t, s.Pages)
	assert.Equal(t, Totals{}, s.Totals)
	assert.False(t, s.HasChanges())
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, Build("run-json", results(), time.Now()).WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-json", decoded["run_id"])
	totals := decoded["totals"].(map[string]interface{})
	assert.Equal(t, float64(3), totals["mapped_boxes"])

	err = Build("x", nil, time.Now()).WriteJSON(filepath.Join(t.TempDir(), "missing", "summary.json"))
	errType, _ := domain.ErrorTypeOf(err)
	assert.Equal(t, domain.ErrorTypeIO, errType)
}
