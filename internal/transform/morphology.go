package transform

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"
)

// Erode applies a ksize x ksize all-ones minimum filter iterations times.
func Erode(src *image.Gray, ksize, iterations int) (*image.Gray, error) {
	return morph(src, ksize, iterations, gift.Minimum)
}

// Dilate applies a ksize x ksize all-ones maximum filter iterations times.
func Dilate(src *image.Gray, ksize, iterations int) (*image.Gray, error) {
	return morph(src, ksize, iterations, gift.Maximum)
}

// Open erodes and then dilates src, removing bright specks smaller than the kernel.
func Open(src *image.Gray, ksize int) (*image.Gray, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}
	return applyGift(src, gift.Minimum(ksize, false), gift.Maximum(ksize, false)), nil
}

// Close dilates and then erodes src, filling dark gaps smaller than the kernel.
func Close(src *image.Gray, ksize int) (*image.Gray, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}
	return applyGift(src, gift.Maximum(ksize, false), gift.Minimum(ksize, false)), nil
}

func morph(src *image.Gray, ksize, iterations int, filter func(int, bool) gift.Filter) (*image.Gray, error) {
	if err := validateKernel(ksize); err != nil {
		return nil, err
	}
	if iterations < 1 {
		return nil, fmt.Errorf("morphology requires at least one iteration, got %d", iterations)
	}

	filters := make([]gift.Filter, iterations)
	for i := range filters {
		filters[i] = filter(ksize, false)
	}
	return applyGift(src, filters...), nil
}

// applyGift runs filters over src into a new grid anchored at the origin.
// Out-of-range taps repeat the edge pixel, which leaves min and max filters
// unaffected by the border.
func applyGift(src *image.Gray, filters ...gift.Filter) *image.Gray {
	g := gift.New(filters...)
	b := g.Bounds(src.Bounds())
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	g.Draw(dst, src)
	return dst
}
