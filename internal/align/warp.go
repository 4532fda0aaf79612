package align

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// warpInto renders the reference-frame view of src: each output pixel (x, y)
// samples src bilinearly at h(x, y). Samples outside src are white.
func warpInto(src *image.RGBA, h homography, w, hgt int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, hgt))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			o := out.PixOffset(x, y)
			sx, sy, ok := h.apply(float64(x), float64(y))
			if !ok || sx < 0 || sy < 0 || sx > float64(sw-1) || sy > float64(sh-1) {
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = 255, 255, 255, 255
				continue
			}
			bilinear(src, sx, sy, out.Pix[o:o+4])
		}
	}
	return out
}

func bilinear(src *image.RGBA, x, y float64, dst []uint8) {
	b := src.Bounds()
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.PixOffset(b.Min.X+x0, b.Min.Y+y0)
	p10 := src.PixOffset(b.Min.X+x1, b.Min.Y+y0)
	p01 := src.PixOffset(b.Min.X+x0, b.Min.Y+y1)
	p11 := src.PixOffset(b.Min.X+x1, b.Min.Y+y1)

	for c := 0; c < 4; c++ {
		top := float64(src.Pix[p00+c])*(1-fx) + float64(src.Pix[p10+c])*fx
		bot := float64(src.Pix[p01+c])*(1-fx) + float64(src.Pix[p11+c])*fx
		dst[c] = uint8(math.Round(top*(1-fy) + bot*fy))
	}
}

// resizeTo scales src to exactly w x h.
func resizeTo(src *image.RGBA, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return out
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	xdraw.Copy(out, image.Point{}, src, src.Bounds(), xdraw.Src, nil)
	return out
}
