package transform

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// LocalMethod selects the formula turning local statistics into a threshold.
type LocalMethod int

const (
	// MethodNiblack thresholds at mean + k*stddev.
	MethodNiblack LocalMethod = iota
	// MethodSauvola thresholds at mean * (1 + k*(stddev/r - 1)).
	MethodSauvola
)

func (m LocalMethod) String() string {
	switch m {
	case MethodNiblack:
		return "niblack"
	case MethodSauvola:
		return "sauvola"
	default:
		return fmt.Sprintf("LocalMethod(%d)", int(m))
	}
}

// LocalThresholdParams configures LocalThreshold. R is the dynamic range of
// the standard deviation and only enters the Sauvola formula.
type LocalThresholdParams struct {
	Window int
	K      float64
	R      float64
	Method LocalMethod
}

// LocalThreshold binarizes src against a per-pixel threshold computed from
// the mean and standard deviation of a Window x Window neighbourhood with
// replicated borders. Pixels strictly above their threshold become 255.
func LocalThreshold(src *image.Gray, p LocalThresholdParams) (*image.Gray, error) {
	if err := validateKernel(p.Window); err != nil {
		return nil, err
	}
	if p.Method == MethodSauvola && p.R <= 0 {
		return nil, errors.New("sauvola threshold requires r > 0")
	}
	if p.Method != MethodNiblack && p.Method != MethodSauvola {
		return nil, fmt.Errorf("unsupported local threshold method: %s", p.Method)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	values := grayValues(src)
	squares := make([]float64, len(values))
	for i, v := range values {
		squares[i] = v * v
	}

	window := ones(p.Window)
	sums := convolveSeparable(values, w, h, window, BorderReplicate)
	sqsums := convolveSeparable(squares, w, h, window, BorderReplicate)
	area := float64(p.Window * p.Window)

	dst := newGrayLike(src)
	for i, v := range values {
		mean := sums[i] / area
		variance := sqsums[i]/area - mean*mean
		if variance < 0 {
			variance = 0
		}
		stddev := math.Sqrt(variance)

		var t float64
		switch p.Method {
		case MethodSauvola:
			t = mean * (1 + p.K*(stddev/p.R-1))
		default:
			t = mean + p.K*stddev
		}

		if v > clampFloat(math.RoundToEven(t), 0, 255) {
			dst.Pix[i] = 255
		}
	}
	return dst, nil
}

// AdaptiveThreshold binarizes src against the rounded mean of its
// blockSize x blockSize neighbourhood minus c: pixels above mean-c become 255.
func AdaptiveThreshold(src *image.Gray, blockSize int, c float64) (*image.Gray, error) {
	if err := validateKernel(blockSize); err != nil {
		return nil, err
	}
	if blockSize < 3 {
		return nil, fmt.Errorf("adaptive threshold block size must be at least 3, got %d", blockSize)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	values := grayValues(src)
	sums := convolveSeparable(values, w, h, ones(blockSize), BorderReplicate)
	area := float64(blockSize * blockSize)
	delta := int(math.Ceil(c))

	dst := newGrayLike(src)
	for i, v := range values {
		mean := int(roundHalfUp(sums[i] / area))
		if int(v)-mean > -delta {
			dst.Pix[i] = 255
		}
	}
	return dst, nil
}
