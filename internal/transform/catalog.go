// Package transform holds the grayscale image operations and the ordered
// catalog the pipeline runs over every decoded image.
//
// Every operation reads its source grid without modifying it and returns a
// newly allocated grid anchored at the origin.
package transform

import (
	"fmt"
	"image"
)

// CatalogVersion identifies the entry set returned by Catalog.
// Version 1 was the smoothing and thresholding subset, see CatalogV1.
const CatalogVersion = 2

// Params carries the default parameters of a catalog entry. Each Func reads
// only the fields that apply to it.
type Params struct {
	KernelSize int
	Sigma      float64
	Iterations int

	Local LocalThresholdParams

	BlockSize int
	C         float64

	Op    Op
	Value int
}

// Func is the signature shared by catalog entries.
type Func func(src *image.Gray, p Params) (*image.Gray, error)

// Entry is a named catalog operation with its default parameters.
type Entry struct {
	Name   string
	Func   Func
	Params Params
}

// Apply runs the entry against src with its default parameters.
func (e Entry) Apply(src *image.Gray) (*image.Gray, error) {
	if e.Func == nil {
		return nil, fmt.Errorf("catalog entry %q has no function", e.Name)
	}
	return e.Func(src, e.Params)
}

// Catalog returns the current entry set in its canonical order.
func Catalog() []Entry {
	return []Entry{
		{Name: "smoothed_gaussian_image", Func: gaussianEntry, Params: Params{KernelSize: 5, Sigma: 0}},
		{Name: "smoothed_image", Func: boxEntry, Params: Params{KernelSize: 5}},
		{Name: "smoothed_median_image", Func: medianEntry, Params: Params{KernelSize: 5}},
		{Name: "local_thresholding_niblack_image", Func: localThresholdEntry, Params: Params{
			Local: LocalThresholdParams{Window: 15, K: 0.2, R: 15, Method: MethodNiblack},
		}},
		// Same Niblack primitive as above with a negative k, not a min/max
		// Bernsen threshold.
		{Name: "local_thresholding_bernsen_image", Func: localThresholdEntry, Params: Params{
			Local: LocalThresholdParams{Window: 15, K: -0.2, R: 128, Method: MethodNiblack},
		}},
		{Name: "adaptive_thresholding_image", Func: adaptiveThresholdEntry, Params: Params{BlockSize: 11, C: 2}},
		{Name: "eroded_image", Func: erodeEntry, Params: Params{KernelSize: 3, Iterations: 1}},
		{Name: "dilated_image", Func: dilateEntry, Params: Params{KernelSize: 3, Iterations: 1}},
		{Name: "opened_image", Func: openEntry, Params: Params{KernelSize: 3}},
		{Name: "closed_image", Func: closeEntry, Params: Params{KernelSize: 3}},
		{Name: "elementwise_addition_image", Func: elementwiseEntry, Params: Params{Op: OpAdd, Value: 50}},
		{Name: "elementwise_subtraction_image", Func: elementwiseEntry, Params: Params{Op: OpSubtract, Value: 30}},
		{Name: "elementwise_cubed_image", Func: elementwiseEntry, Params: Params{Op: OpCube}},
		{Name: "elementwise_squared_image", Func: elementwiseEntry, Params: Params{Op: OpSquare}},
		{Name: "elementwise_negative_image", Func: elementwiseEntry, Params: Params{Op: OpNegative}},
		{Name: "elementwise_log_image", Func: elementwiseEntry, Params: Params{Op: OpLog}},
		{Name: "elementwise_sqrt_image", Func: elementwiseEntry, Params: Params{Op: OpSqrt}},
		{Name: "linear_contrasted_image", Func: linearContrastEntry},
	}
}

// CatalogV1 returns the first six entries of Catalog, the set served before
// morphology and intensity transforms were added.
func CatalogV1() []Entry {
	return Catalog()[:6]
}

func gaussianEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return GaussianBlur(src, p.KernelSize, p.Sigma)
}

func boxEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return BoxBlur(src, p.KernelSize)
}

func medianEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return MedianBlur(src, p.KernelSize)
}

func localThresholdEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return LocalThreshold(src, p.Local)
}

func adaptiveThresholdEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return AdaptiveThreshold(src, p.BlockSize, p.C)
}

func erodeEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return Erode(src, p.KernelSize, p.Iterations)
}

func dilateEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return Dilate(src, p.KernelSize, p.Iterations)
}

func openEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return Open(src, p.KernelSize)
}

func closeEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return Close(src, p.KernelSize)
}

func elementwiseEntry(src *image.Gray, p Params) (*image.Gray, error) {
	return Elementwise(src, p.Op, p.Value)
}

func linearContrastEntry(src *image.Gray, _ Params) (*image.Gray, error) {
	return LinearContrast(src), nil
}
