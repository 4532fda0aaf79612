package raster

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/spherical/pdf-diff/internal/domain"
)

// Blank writes a white page of the given size, used to pad the shorter document.
func Blank(outDir, prefix string, pageIndex, width, height int) (domain.RasterImage, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	path := filepath.Join(outDir, PageFileName(prefix, pageIndex))
	if err := WritePNG(path, img); err != nil {
		return domain.RasterImage{}, domain.IOError("Failed to write padding page", err)
	}

	return domain.RasterImage{
		PageIndex: pageIndex,
		Path:      path,
		Width:     width,
		Height:    height,
		Image:     img,
	}, nil
}
