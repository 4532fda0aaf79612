package align

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"
)

type point struct{ x, y float64 }

// homography is a row-major 3x3 perspective transform.
type homography [9]float64

var identityH = homography{1, 0, 0, 0, 1, 0, 0, 0, 1}

// apply maps (x, y); ok is false at the line at infinity.
func (h homography) apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}

func (h homography) finite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (h homography) normalized() (homography, bool) {
	if math.Abs(h[8]) < 1e-12 {
		return h, false
	}
	for i := range h {
		h[i] /= h[8]
	}
	return h, true
}

// rescale turns a transform estimated between downscaled images into one
// between the full-size images: diag(1/sc) * h * diag(sr).
func (h homography) rescale(srx, sry, scx, scy float64) homography {
	sr := [3]float64{srx, sry, 1}
	sc := [3]float64{scx, scy, 1}
	var out homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h[r*3+c] * sr[c] / sc[r]
		}
	}
	return out
}

// solveExact fits the transform through exactly four correspondences with h33 = 1.
func solveExact(src, dst []point) (homography, bool) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y, u, v := src[i].x, src[i].y, dst[i].x, dst[i].y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return homography{}, false
	}
	h := homography{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	}
	return h, h.finite()
}

// fitDLT is the normalized direct linear transform least-squares fit over
// n >= 4 correspondences.
func fitDLT(src, dst []point) (homography, bool) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return homography{}, false
	}

	ts, ns := normalizePoints(src)
	td, nd := normalizePoints(dst)

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y, u, v := ns[i].x, ns[i].y, nd[i].x, nd[i].y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return homography{}, false
	}
	var v mat.Dense
	svd.VTo(&v)

	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// H = Td^-1 * Hn * Ts
	var tmp, full mat.Dense
	tmp.Mul(hn, ts)
	full.Mul(inverseSimilarity(td), &tmp)

	var h homography
	for i := 0; i < 9; i++ {
		h[i] = full.At(i/3, i%3)
	}
	h, ok := h.normalized()
	return h, ok && h.finite()
}

// normalizePoints centres the points on the origin with mean distance sqrt(2).
func normalizePoints(pts []point) (*mat.Dense, []point) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.x
		cy += p.y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.x-cx, p.y-cy)
	}
	meanDist /= float64(len(pts))
	s := 1.0
	if meanDist > 1e-12 {
		s = math.Sqrt2 / meanDist
	}

	out := make([]point, len(pts))
	for i, p := range pts {
		out[i] = point{(p.x - cx) * s, (p.y - cy) * s}
	}
	t := mat.NewDense(3, 3, []float64{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1})
	return t, out
}

func inverseSimilarity(t *mat.Dense) *mat.Dense {
	s := t.At(0, 0)
	cx := -t.At(0, 2) / s
	cy := -t.At(1, 2) / s
	return mat.NewDense(3, 3, []float64{1 / s, 0, cx, 0, 1 / s, cy, 0, 0, 1})
}

func reprojectionError(h homography, s, d point) float64 {
	x, y, ok := h.apply(s.x, s.y)
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(x-d.x, y-d.y)
}

func inliersOf(h homography, src, dst []point, tol float64) []int {
	var idx []int
	for i := range src {
		if reprojectionError(h, src[i], dst[i]) <= tol {
			idx = append(idx, i)
		}
	}
	return idx
}

// ransac robustly fits src -> dst. The seed is fixed so results are reproducible.
func ransac(src, dst []point, iterations int, tol float64) (homography, []int, bool) {
	n := len(src)
	if n < 4 {
		return homography{}, nil, false
	}

	rng := rand.New(rand.NewSource(1))
	var (
		best    homography
		bestIdx []int
	)
	sample := make([]int, 4)
	s4 := make([]point, 4)
	d4 := make([]point, 4)

	for it := 0; it < iterations; it++ {
		pickDistinct(rng, n, sample)
		for k, i := range sample {
			s4[k], d4[k] = src[i], dst[i]
		}
		h, ok := solveExact(s4, d4)
		if !ok {
			continue
		}
		if idx := inliersOf(h, src, dst, tol); len(idx) > len(bestIdx) {
			best, bestIdx = h, idx
			if len(bestIdx) == n {
				break
			}
		}
	}
	if len(bestIdx) < 4 {
		return homography{}, nil, false
	}

	is := make([]point, len(bestIdx))
	id := make([]point, len(bestIdx))
	for k, i := range bestIdx {
		is[k], id[k] = src[i], dst[i]
	}
	if refit, ok := fitDLT(is, id); ok {
		if idx := inliersOf(refit, src, dst, tol); len(idx) >= len(bestIdx) {
			best, bestIdx = refit, idx
		}
	}
	return best, bestIdx, true
}

func pickDistinct(rng *rand.Rand, n int, out []int) {
	for i := range out {
		for {
			v := rng.Intn(n)
			if !slices.Contains(out[:i], v) {
				out[i] = v
				break
			}
		}
	}
}

// plausible rejects transforms that flip orientation or change the page area
// by more than a factor of two.
func plausible(h homography, refW, refH, cmpW, cmpH int) bool {
	if !h.finite() {
		return false
	}
	if h[0]*h[4]-h[1]*h[3] <= 0 {
		return false
	}

	corners := []point{{0, 0}, {float64(refW), 0}, {float64(refW), float64(refH)}, {0, float64(refH)}}
	mapped := make([]point, len(corners))
	for i, c := range corners {
		x, y, ok := h.apply(c.x, c.y)
		if !ok {
			return false
		}
		mapped[i] = point{x, y}
	}

	ratio := polygonArea(mapped) / float64(cmpW*cmpH)
	return ratio >= 0.5 && ratio <= 2
}

func polygonArea(pts []point) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].x*pts[j].y - pts[j].x*pts[i].y
	}
	return math.Abs(a) / 2
}

// nearIdentity reports whether h moves every page corner by less than tol pixels.
func nearIdentity(h homography, w, hgt int, tol float64) bool {
	for _, c := range []point{{0, 0}, {float64(w), 0}, {float64(w), float64(hgt)}, {0, float64(hgt)}} {
		x, y, ok := h.apply(c.x, c.y)
		if !ok || math.Hypot(x-c.x, y-c.y) >= tol {
			return false
		}
	}
	return true
}
