package transform

import "image"

// Border selects how out-of-range coordinates are mapped back into the grid.
type Border int

const (
	// BorderReflect101 mirrors around the edge pixel without repeating it: gfedcb|abcdefgh|gfedcba.
	BorderReflect101 Border = iota
	// BorderReplicate repeats the edge pixel: aaaaaa|abcdefgh|hhhhhhh.
	BorderReplicate
)

func (b Border) index(p, n int) int {
	if p >= 0 && p < n {
		return p
	}
	if n == 1 {
		return 0
	}

	switch b {
	case BorderReplicate:
		return clamp(p, 0, n-1)
	default:
		for p < 0 || p >= n {
			if p < 0 {
				p = -p
			}
			if p >= n {
				p = 2*(n-1) - p
			}
		}
		return p
	}
}

// offsets precomputes the border-mapped source index for every tap of a
// centered window of size ksize along an axis of length n. Row i holds the
// ksize indices contributing to output position i.
func (b Border) offsets(n, ksize int) []int {
	half := ksize / 2
	out := make([]int, n*ksize)
	for i := 0; i < n; i++ {
		for k := 0; k < ksize; k++ {
			out[i*ksize+k] = b.index(i+k-half, n)
		}
	}
	return out
}

// newGrayLike allocates a zeroed grid with the same dimensions as src,
// anchored at the origin.
func newGrayLike(src *image.Gray) *image.Gray {
	b := src.Bounds()
	return image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
}

// row returns the pixels of row y of src, independent of its rectangle origin.
func row(src *image.Gray, y int) []uint8 {
	b := src.Bounds()
	start := src.PixOffset(b.Min.X, b.Min.Y+y)
	return src.Pix[start : start+b.Dx()]
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

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
