package compose

import (
	"fmt"
	"image/color"
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"
)

// fpdfCanvas draws with go-pdf/fpdf. fpdf measures y from the top, so every
// call flips the bottom-left coordinates of Canvas.
type fpdfCanvas struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	height float64
}

// NewPDFCanvas returns a Canvas backed by fpdf.
func NewPDFCanvas(title string) Canvas {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: summaryWidth, Ht: summaryHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator("pdf-diff", true)
	pdf.SetTitle(title, true)
	pdf.SetFont("Helvetica", "", 10)

	return &fpdfCanvas{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (c *fpdfCanvas) AddPage(width, height float64) {
	orientation := "P"
	if width > height {
		orientation = "L"
	}
	c.pdf.AddPageFormat(orientation, fpdf.SizeType{Wd: width, Ht: height})
	c.height = height
}

// DrawImage checks the PNG decodes before handing it to fpdf, whose errors
// are sticky and would poison the whole document.
func (c *fpdfCanvas) DrawImage(path string, r PointRect) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = png.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	c.pdf.ImageOptions(path, r.X, c.flip(r), r.W, r.H, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return nil
}

func (c *fpdfCanvas) FillRect(r PointRect, col color.RGBA, opacity float64) {
	c.pdf.SetAlpha(opacity, "Normal")
	c.pdf.SetFillColor(int(col.R), int(col.G), int(col.B))
	c.pdf.Rect(r.X, c.flip(r), r.W, r.H, "F")
	c.pdf.SetAlpha(1, "Normal")
}

func (c *fpdfCanvas) StrokeRect(r PointRect, col color.RGBA, lineWidth float64) {
	c.pdf.SetDrawColor(int(col.R), int(col.G), int(col.B))
	c.pdf.SetLineWidth(lineWidth)
	c.pdf.Rect(r.X, c.flip(r), r.W, r.H, "D")
}

func (c *fpdfCanvas) Text(x, y, size float64, s string) {
	c.pdf.SetFontSize(size)
	c.pdf.SetTextColor(0, 0, 0)
	c.pdf.Text(x, c.height-y, c.tr(s))
}

func (c *fpdfCanvas) Close(path string) error {
	if err := c.pdf.Error(); err != nil {
		return err
	}
	return c.pdf.OutputFileAndClose(path)
}

func (c *fpdfCanvas) flip(r PointRect) float64 {
	return c.height - r.Y - r.H
}
