package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/report"
)

type op struct {
	kind string
	rect PointRect
	text string
}

type fakeCanvas struct {
	pages    [][2]float64
	ops      []op
	badPaths map[string]bool
	closeErr error
	closed   string
}

func (f *fakeCanvas) AddPage(w, h float64) { f.pages = append(f.pages, [2]float64{w, h}) }

func (f *fakeCanvas) DrawImage(path string, r PointRect) error {
	if f.badPaths[path] {
		return errors.New("unreadable")
	}
	f.ops = append(f.ops, op{kind: "image", rect: r, text: path})
	return nil
}

func (f *fakeCanvas) FillRect(r PointRect, _ color.RGBA, _ float64) {
	f.ops = append(f.ops, op{kind: "fill", rect: r})
}

func (f *fakeCanvas) StrokeRect(r PointRect, _ color.RGBA, _ float64) {
	f.ops = append(f.ops, op{kind: "stroke", rect: r})
}

func (f *fakeCanvas) Text(x, y, _ float64, s string) {
	f.ops = append(f.ops, op{kind: "text", rect: PointRect{X: x, Y: y}, text: s})
}

func (f *fakeCanvas) Close(path string) error {
	f.closed = path
	return f.closeErr
}

func (f *fakeCanvas) texts() string {
	var sb strings.Builder
	for _, o := range f.ops {
		if o.kind == "text" {
			sb.WriteString(o.text + "\n")
		}
	}
	return sb.String()
}

func composerWith(fc *fakeCanvas, opts Options) *Composer {
	return NewWithCanvas(opts, func(string) Canvas { return fc }, nil)
}

func pageResult(idx int) domain.PageResult {
	ref := domain.RasterImage{PageIndex: idx, Path: fmt.Sprintf("ref_%d.png", idx), Width: 600, Height: 300}
	aligned := ref
	aligned.Path = fmt.Sprintf("aligned_%d.png", idx)
	return domain.PageResult{
		PageIndex: idx,
		Reference: ref,
		Aligned:   aligned,
		Alignment: domain.AlignmentResult{Strategy: domain.AlignIdentity, Success: true},
		PixelDiff: domain.PixelDiffResult{ChangedPixels: 12, OverlayGenerated: true, OverlayPath: fmt.Sprintf("overlay_%d.png", idx)},
	}
}

func TestToPoints(t *testing.T) {
	// 300 dpi: 100 px = 24 pt. Page height 72 pt.
	r := toPoints(domain.Rect{Left: 100, Top: 50, Width: 200, Height: 25}, 72.0/300, 72)
	assert.InDelta(t, 24, r.X, 1e-9)
	assert.InDelta(t, 48, r.W, 1e-9)
	assert.InDelta(t, 6, r.H, 1e-9)
	assert.InDelta(t, 72-12-6, r.Y, 1e-9)
}

func TestCompose_PageLayout(t *testing.T) {
	fc := &fakeCanvas{}
	res := pageResult(0)
	res.Changes = []domain.ChangeRecord{
		{PageIndex: 0, Box: domain.Rect{Left: 10, Top: 20, Width: 30, Height: 40}, Kind: domain.ChangeInsert},
		{PageIndex: 0, Box: domain.Rect{}, Kind: domain.ChangeInsert},
	}
	opts := DefaultOptions()
	opts.DPI = 72

	degs, err := composerWith(fc, opts).Compose(context.Background(), "out.pdf", []domain.PageResult{res}, report.Summary{})
	require.NoError(t, err)
	assert.Empty(t, degs)
	assert.Equal(t, "out.pdf", fc.closed)

	require.Len(t, fc.pages, 2)
	assert.Equal(t, [2]float64{600, 300}, fc.pages[0])
	assert.Equal(t, [2]float64{summaryWidth, summaryHeight}, fc.pages[1])

	require.GreaterOrEqual(t, len(fc.ops), 4)
	assert.Equal(t, op{kind: "image", rect: PointRect{W: 600, H: 300}, text: "aligned_0.png"}, fc.ops[0])
	assert.Equal(t, "overlay_0.png", fc.ops[1].text)

	want := PointRect{X: 10, Y: 300 - 20 - 40, W: 30, H: 40}
	assert.Equal(t, op{kind: "fill", rect: want}, fc.ops[2])
	assert.Equal(t, op{kind: "stroke", rect: want}, fc.ops[3])
	assert.Equal(t, "text", fc.ops[4].kind, "empty boxes are skipped")
}

func TestCompose_PagesInOrder(t *testing.T) {
	fc := &fakeCanvas{}
	results := []domain.PageResult{pageResult(0), pageResult(1), pageResult(2)}

	_, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", results, report.Summary{})
	require.NoError(t, err)

	var bases []string
	for _, o := range fc.ops {
		if o.kind == "image" && strings.HasPrefix(o.text, "aligned_") {
			bases = append(bases, o.text)
		}
	}
	assert.Equal(t, []string{"aligned_0.png", "aligned_1.png", "aligned_2.png"}, bases)
	assert.Len(t, fc.pages, 4)
}

func TestCompose_UnreadableImageDegrades(t *testing.T) {
	fc := &fakeCanvas{badPaths: map[string]bool{"overlay_0.png": true}}

	degs, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", []domain.PageResult{pageResult(0)}, report.Summary{})
	require.NoError(t, err)
	require.Len(t, degs, 1)
	assert.Equal(t, "compose", degs[0].Stage)
	assert.Equal(t, "overlay", degs[0].Strategy)
}

func TestCompose_CloseFailureIsFatal(t *testing.T) {
	fc := &fakeCanvas{closeErr: errors.New("disk full")}

	_, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", nil, report.Summary{})
	require.Error(t, err)
	errType, _ := domain.ErrorTypeOf(err)
	assert.Equal(t, domain.ErrorTypeComposition, errType)
}

func TestCompose_SummaryContent(t *testing.T) {
	res := pageResult(0)
	res.PixelDiff.ChangedPixels = -1
	res.Lines = []domain.LineChange{{Line: 2, Old: "DA 450 FT", New: "DA 500 FT"}}
	res.Signals = []domain.SignalChange{{Key: "DA", Old: "450", New: "500", Delta: "(+50)"}}
	res.Degradations = []domain.Degradation{{Stage: "align", Strategy: "registered", Reason: "too few matches"}}

	at := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	summary := report.Build("run-7", []domain.PageResult{res}, at)

	fc := &fakeCanvas{}
	_, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", []domain.PageResult{res}, summary)
	require.NoError(t, err)

	text := fc.texts()
	assert.Contains(t, text, "Generated: 2026-10-15T08:30:00Z")
	assert.Contains(t, text, "Run: run-7")
	assert.Contains(t, text, "pages without pixel count: 1")
	assert.Contains(t, text, "n/a")
	assert.Contains(t, text, "align/registered: too few matches")
	assert.Contains(t, text, "p1 L2: DA 450 FT -> DA 500 FT")
	assert.Contains(t, text, "DA: OLD 450 -> NEW 500 (+50)")
}

func TestCompose_SummaryLineCap(t *testing.T) {
	res := pageResult(0)
	for i := 1; i <= 40; i++ {
		res.Lines = append(res.Lines, domain.LineChange{Line: i, Old: "a", New: "b"})
	}
	opts := DefaultOptions()
	opts.SummaryMaxLines = 5

	fc := &fakeCanvas{}
	_, err := composerWith(fc, opts).Compose(context.Background(), "out.pdf", []domain.PageResult{res},
		report.Build("r", []domain.PageResult{res}, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(fc.texts(), "-> b"))
}

func TestCompose_SummaryFitsOnePage(t *testing.T) {
	var results []domain.PageResult
	for i := 0; i < 60; i++ {
		r := pageResult(i)
		r.Degradations = []domain.Degradation{{Stage: "ocr", Strategy: "tesseract-cli", Reason: "missing"}}
		results = append(results, r)
	}

	fc := &fakeCanvas{}
	_, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", results,
		report.Build("r", results, time.Now()))
	require.NoError(t, err)
	assert.Len(t, fc.pages, 61)
	assert.Contains(t, fc.texts(), "see summary.json")
}

func TestCompose_SummaryStaysInsideMargins(t *testing.T) {
	require.Equal(t, 63, summaryCapacity())

	var results []domain.PageResult
	for i := 0; i < 80; i++ {
		r := pageResult(i)
		r.Degradations = []domain.Degradation{{Stage: "align", Strategy: "registered", Reason: "too few keypoints"}}
		results = append(results, r)
	}
	fc := &fakeCanvas{}
	_, err := composerWith(fc, DefaultOptions()).Compose(context.Background(), "out.pdf", results,
		report.Build("r", results, time.Now()))
	require.NoError(t, err)

	last := fc.ops[len(fc.ops)-1]
	assert.Contains(t, last.text, "see summary.json")
	assert.GreaterOrEqual(t, last.rect.Y, summaryMargin)
}

func writeRaster(t *testing.T, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestCompose_WritesPDF(t *testing.T) {
	dir := t.TempDir()
	res := pageResult(0)
	res.Reference.Width, res.Reference.Height = 150, 100
	res.Aligned.Path = writeRaster(t, dir, "aligned.png", 150, 100, color.RGBA{255, 255, 255, 255})
	res.PixelDiff.OverlayPath = writeRaster(t, dir, "overlay.png", 150, 100, color.RGBA{255, 0, 0, 128})
	res.Changes = []domain.ChangeRecord{{Box: domain.Rect{Left: 5, Top: 5, Width: 40, Height: 10}, Kind: domain.ChangeInsert}}

	summary := report.Build("run-pdf", []domain.PageResult{res}, time.Now())
	summaryPath := filepath.Join(dir, "summary.json")
	require.NoError(t, summary.WriteJSON(summaryPath))

	opts := DefaultOptions()
	opts.DPI = 72
	out := filepath.Join(dir, "diff.pdf")

	c := New(opts, nil)
	degs, err := c.Compose(context.Background(), out, []domain.PageResult{res}, summary)
	require.NoError(t, err)
	assert.Empty(t, degs)
	assert.Nil(t, c.Attach(out, summaryPath))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	atts, err := api.Attachments(f, nil)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "summary.json", atts[0].ID)
}

func TestAttach(t *testing.T) {
	var got []string
	c := composerWith(&fakeCanvas{}, DefaultOptions())
	c.attach = func(outPath, file string) error {
		got = append(got, file)
		if file == "bad.json" {
			return errors.New("write failed")
		}
		return nil
	}

	assert.Nil(t, c.Attach("out.pdf", "summary.json"))
	assert.Equal(t, []string{"summary.json"}, got)

	d := c.Attach("out.pdf", "bad.json")
	require.NotNil(t, d)
	assert.Equal(t, "attach-summary", d.Strategy)

	off := DefaultOptions()
	off.AttachSummary = false
	c = composerWith(&fakeCanvas{}, off)
	c.attach = func(string, string) error { t.Fatal("attach called while disabled"); return nil }
	assert.Nil(t, c.Attach("out.pdf", "summary.json"))
}
