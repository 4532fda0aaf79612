package align

import "math/bits"

const (
	maxHamming = 64
	ratioTest  = 0.8
)

type match struct {
	ref, cmp int
	dist     int
}

func hamming(a, b descriptor) int {
	return bits.OnesCount64(a[0]^b[0]) + bits.OnesCount64(a[1]^b[1]) +
		bits.OnesCount64(a[2]^b[2]) + bits.OnesCount64(a[3]^b[3])
}

// matchDescriptors pairs reference and comparison descriptors that are each
// other's nearest neighbour and pass the ratio test.
func matchDescriptors(ref, cmp []descriptor) []match {
	if len(ref) == 0 || len(cmp) == 0 {
		return nil
	}

	reverse := make([]int, len(cmp))
	for j, d := range cmp {
		best, bestD := -1, 1<<30
		for i, r := range ref {
			if dist := hamming(d, r); dist < bestD {
				best, bestD = i, dist
			}
		}
		reverse[j] = best
	}

	var matches []match
	for i, d := range ref {
		best, bestD, secondD := -1, 1<<30, 1<<30
		for j, c := range cmp {
			dist := hamming(d, c)
			switch {
			case dist < bestD:
				best, secondD, bestD = j, bestD, dist
			case dist < secondD:
				secondD = dist
			}
		}
		if best < 0 || bestD > maxHamming || reverse[best] != i {
			continue
		}
		if secondD < 1<<30 && float64(bestD) >= ratioTest*float64(secondD) {
			continue
		}
		matches = append(matches, match{ref: i, cmp: best, dist: bestD})
	}
	return matches
}
