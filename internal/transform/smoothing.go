package transform

import (
	"image"
	"math"

	"github.com/disintegration/gift"
)

// Fixed kernels used when sigma is not positive, identical to the ones
// OpenCV hard-codes for small odd sizes.
var smallGaussianKernels = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

// GaussianKernel returns a normalized 1-D Gaussian kernel of ksize taps.
// A non-positive sigma is derived from the size.
func GaussianKernel(ksize int, sigma float64) ([]float64, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}

	if sigma <= 0 {
		if fixed, ok := smallGaussianKernels[ksize]; ok {
			return append([]float64(nil), fixed...), nil
		}
		sigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}

	kernel := make([]float64, ksize)
	half := float64(ksize / 2)
	scale := -0.5 / (sigma * sigma)
	var sum float64
	for i := range kernel {
		d := float64(i) - half
		kernel[i] = math.Exp(scale * d * d)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel, nil
}

// GaussianBlur smooths src with a separable ksize x ksize Gaussian kernel,
// mirroring the image at its borders.
func GaussianBlur(src *image.Gray, ksize int, sigma float64) (*image.Gray, error) {
	kernel, err := GaussianKernel(ksize, sigma)
	if err != nil {
		return nil, err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	smoothed := convolveSeparable(grayValues(src), w, h, kernel, BorderReflect101)

	dst := newGrayLike(src)
	for i, v := range smoothed {
		dst.Pix[i] = roundHalfUp(v)
	}
	return dst, nil
}

// BoxBlur replaces every pixel by the rounded mean of its ksize x ksize
// neighbourhood, mirroring the image at its borders.
func BoxBlur(src *image.Gray, ksize int) (*image.Gray, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	sums := convolveSeparable(grayValues(src), w, h, ones(ksize), BorderReflect101)
	area := float64(ksize * ksize)

	dst := newGrayLike(src)
	for i, s := range sums {
		dst.Pix[i] = roundHalfUp(s / area)
	}
	return dst, nil
}

// MedianBlur replaces every pixel by the median of its ksize x ksize
// neighbourhood, repeating edge pixels at the borders.
func MedianBlur(src *image.Gray, ksize int) (*image.Gray, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}
	return applyGift(src, gift.Median(ksize, false)), nil
}

// convolveSeparable convolves a w x h plane with kernel along x and then y.
func convolveSeparable(values []float64, w, h int, kernel []float64, border Border) []float64 {
	ksize := len(kernel)
	xs := border.offsets(w, ksize)
	ys := border.offsets(h, ksize)

	horizontal := make([]float64, w*h)
	for y := 0; y < h; y++ {
		line := values[y*w : (y+1)*w]
		dst := horizontal[y*w : (y+1)*w]
		for x := range dst {
			var acc float64
			for k, sx := range xs[x*ksize : (x+1)*ksize] {
				acc += kernel[k] * line[sx]
			}
			dst[x] = acc
		}
	}

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		dst := out[y*w : (y+1)*w]
		for k, sy := range ys[y*ksize : (y+1)*ksize] {
			weight := kernel[k]
			line := horizontal[sy*w : (sy+1)*w]
			for x := range dst {
				dst[x] += weight * line[x]
			}
		}
	}
	return out
}

func grayValues(src *image.Gray) []float64 {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	values := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for _, p := range row(src, y) {
			values = append(values, float64(p))
		}
	}
	return values
}

func ones(n int) []float64 {
	k := make([]float64, n)
	for i := range k {
		k[i] = 1
	}
	return k
}

func roundHalfUp(v float64) uint8 {
	return uint8(clampFloat(math.Floor(v+0.5), 0, 255))
}

func validateKernel(ksize int) error {
	if ksize <= 0 || ksize%2 == 0 {
		return &KernelSizeError{Size: ksize}
	}
	return nil
}
