package raster

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
)

func TestValidator_ValidatePDFPath(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "ok.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("hello"), 0o644))

	v := NewValidator(nil)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid pdf", pdfPath, false},
		{"empty path", "  ", true},
		{"missing file", filepath.Join(dir, "missing.pdf"), true},
		{"directory", dir, true},
		{"wrong extension", txtPath, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePDFPath(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errType, _ := domain.ErrorTypeOf(err)
			assert.Equal(t, domain.ErrorTypeValidation, errType)
		})
	}
}

func TestValidator_ValidateDPI(t *testing.T) {
	v := NewValidator(nil)
	assert.NoError(t, v.ValidateDPI(300))
	assert.Error(t, v.ValidateDPI(0))
	assert.Error(t, v.ValidateDPI(5000))
}

func TestConverter_RejectsInvalidInput(t *testing.T) {
	c := NewConverter(nil)
	_, err := c.Render(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), 300, t.TempDir(), "reference")
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}

func TestConverter_CorruptPDFIsRasterizationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not really a pdf"), 0o644))

	outDir := filepath.Join(dir, "out")
	_, err := NewConverter(nil).Render(context.Background(), path, 72, outDir, "reference")
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	entries, _ := os.ReadDir(outDir)
	assert.Empty(t, entries)
}

func TestPageFileName(t *testing.T) {
	assert.Equal(t, "reference_page_001.png", PageFileName("reference", 0))
	assert.Equal(t, "comparison_page_012.png", PageFileName("comparison", 11))
}

func TestPNGRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, WritePNG(path, img))

	got, err := ReadPNG(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, got.RGBAAt(2, 1))
}

func TestToRGBA_NormalisesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10)).SubImage(image.Rect(5, 5, 8, 9))
	got := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 4), got.Bounds())
}

func TestBlank(t *testing.T) {
	dir := t.TempDir()
	r, err := Blank(dir, "comparison", 2, 20, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, r.PageIndex)
	assert.Equal(t, filepath.Join(dir, "comparison_page_003.png"), r.Path)
	assert.Equal(t, 20, r.Width)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, r.Image.RGBAAt(19, 9))
	assert.FileExists(t, r.Path)
}
