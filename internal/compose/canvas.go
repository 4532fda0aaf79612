// Package compose renders the annotated comparison document: one page per
// compared page pair plus a trailing summary page.
package compose

import (
	"image/color"

	"github.com/spherical/pdf-diff/internal/domain"
)

// PointRect is a rectangle in output points with a bottom-left origin.
type PointRect struct {
	X, Y, W, H float64
}

// Canvas is a page-oriented drawing surface in points, origin bottom-left.
type Canvas interface {
	AddPage(width, height float64)
	DrawImage(path string, r PointRect) error
	FillRect(r PointRect, c color.RGBA, opacity float64)
	StrokeRect(r PointRect, c color.RGBA, lineWidth float64)
	Text(x, y, size float64, s string)
	Close(path string) error
}

// pointsPerInch is the PDF user-space resolution.
const pointsPerInch = 72.0

// toPoints converts a top-left pixel rectangle into bottom-left points on a
// page of pageHeight points.
func toPoints(r domain.Rect, scale, pageHeight float64) PointRect {
	h := float64(r.Height) * scale
	return PointRect{
		X: float64(r.Left) * scale,
		Y: pageHeight - float64(r.Top)*scale - h,
		W: float64(r.Width) * scale,
		H: h,
	}
}
