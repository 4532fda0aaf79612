package align

import (
	"image"
	"math"
	"math/rand"
	"sort"

	xdraw "golang.org/x/image/draw"
)

const (
	patchRadius  = 15
	borderMargin = patchRadius + 1
	nmsRadius    = 3 // 7x7 window
	harrisK      = 0.04
	gridCells    = 8
)

// grayImage is a float luminance buffer.
type grayImage struct {
	w, h int
	pix  []float64
}

func (g *grayImage) at(x, y int) float64 { return g.pix[y*g.w+x] }

type keypoint struct {
	x, y     int
	response float64
}

// descriptor is a 256-bit BRIEF binary string.
type descriptor [4]uint64

// workingGray converts img to grayscale, downscaled so its longest side is at
// most maxSide. It returns the per-axis scale factors applied.
func workingGray(img *image.RGBA, maxSide int) (*grayImage, float64, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	s := 1.0
	if longest := max(w, h); maxSide > 0 && longest > maxSide {
		s = float64(maxSide) / float64(longest)
	}
	dw := max(1, int(math.Round(float64(w)*s)))
	dh := max(1, int(math.Round(float64(h)*s)))

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	g := &grayImage{w: dw, h: dh, pix: make([]float64, dw*dh)}
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			g.pix[y*dw+x] = float64(dst.Pix[y*dst.Stride+x])
		}
	}
	return g, float64(dw) / float64(w), float64(dh) / float64(h)
}

// boxBlur is a separable mean filter with edge clamping.
func boxBlur(src []float64, w, h, r int) []float64 {
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))
	n := float64(2*r + 1)

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += row[clamp(x+k, 0, w-1)]
			}
			tmp[y*w+x] = sum / n
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += tmp[clamp(y+k, 0, h-1)*w+x]
			}
			out[y*w+x] = sum / n
		}
	}
	return out
}

// detectCorners returns up to limit Harris corners, strongest first, spread
// over a coarse grid so one dense region cannot take every slot.
func detectCorners(g *grayImage, limit int) []keypoint {
	w, h := g.w, g.h
	if w <= 2*borderMargin || h <= 2*borderMargin || limit <= 0 {
		return nil
	}

	ixx := make([]float64, w*h)
	iyy := make([]float64, w*h)
	ixy := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			dx := (g.at(x+1, y) - g.at(x-1, y)) / 2
			dy := (g.at(x, y+1) - g.at(x, y-1)) / 2
			i := y*w + x
			ixx[i] = dx * dx
			iyy[i] = dy * dy
			ixy[i] = dx * dy
		}
	}
	sxx := boxBlur(ixx, w, h, 2)
	syy := boxBlur(iyy, w, h, 2)
	sxy := boxBlur(ixy, w, h, 2)

	resp := make([]float64, w*h)
	var maxResp float64
	for i := range resp {
		tr := sxx[i] + syy[i]
		r := sxx[i]*syy[i] - sxy[i]*sxy[i] - harrisK*tr*tr
		resp[i] = r
		if r > maxResp {
			maxResp = r
		}
	}
	if maxResp <= 0 {
		return nil
	}
	threshold := 0.01 * maxResp

	var candidates []keypoint
	for y := borderMargin; y < h-borderMargin; y++ {
		for x := borderMargin; x < w-borderMargin; x++ {
			r := resp[y*w+x]
			if r <= threshold || !isLocalMax(resp, w, x, y, r) {
				continue
			}
			candidates = append(candidates, keypoint{x: x, y: y, response: r})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].response > candidates[j].response
	})

	perCell := max(1, 2*limit/(gridCells*gridCells))
	cellW := float64(w) / gridCells
	cellH := float64(h) / gridCells
	counts := make([]int, gridCells*gridCells)

	kps := make([]keypoint, 0, min(limit, len(candidates)))
	for _, kp := range candidates {
		cell := min(gridCells-1, int(float64(kp.y)/cellH))*gridCells + min(gridCells-1, int(float64(kp.x)/cellW))
		if counts[cell] >= perCell {
			continue
		}
		counts[cell]++
		kps = append(kps, kp)
		if len(kps) == limit {
			break
		}
	}
	return kps
}

func isLocalMax(resp []float64, w, x, y int, r float64) bool {
	for dy := -nmsRadius; dy <= nmsRadius; dy++ {
		for dx := -nmsRadius; dx <= nmsRadius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := resp[(y+dy)*w+x+dx]
			if n > r || (n == r && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

// briefPattern holds 256 fixed sample pairs (x1, y1, x2, y2) inside the patch.
var briefPattern = func() [256][4]int {
	rng := rand.New(rand.NewSource(0x5eed))
	sigma := float64(2*patchRadius+1) / 5
	sample := func() int {
		v := int(math.Round(rng.NormFloat64() * sigma))
		return clamp(v, -patchRadius, patchRadius)
	}
	var p [256][4]int
	for i := range p {
		p[i] = [4]int{sample(), sample(), sample(), sample()}
	}
	return p
}()

// describe computes BRIEF descriptors on a smoothed copy of g.
func describe(g *grayImage, kps []keypoint) []descriptor {
	smooth := boxBlur(g.pix, g.w, g.h, 2)
	descs := make([]descriptor, len(kps))
	for k, kp := range kps {
		var d descriptor
		for i, p := range briefPattern {
			a := smooth[(kp.y+p[1])*g.w+kp.x+p[0]]
			b := smooth[(kp.y+p[3])*g.w+kp.x+p[2]]
			if a < b {
				d[i/64] |= 1 << (uint(i) % 64)
			}
		}
		descs[k] = d
	}
	return descs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
