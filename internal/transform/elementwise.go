package transform

import (
	"image"
	"math"
	"strconv"
	"strings"
)

// Op is an elementwise intensity operation.
type Op int

const (
	OpAdd Op = iota
	OpSubtract
	OpCube
	OpSquare
	OpNegative
	OpLog
	OpSqrt
)

var opNames = [...]string{
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpCube:     "cube",
	OpSquare:   "square",
	OpNegative: "negative",
	OpLog:      "log",
	OpSqrt:     "sqrt",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "Op(" + strconv.Itoa(int(o)) + ")"
	}
	return opNames[o]
}

// ParseOp resolves an operation name such as "add" or "sqrt".
func ParseOp(name string) (Op, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, n := range opNames {
		if n == normalized {
			return Op(i), nil
		}
	}
	return 0, &InvalidOperationError{Op: name}
}

// LUT returns the 256-entry lookup table of o. value is the constant for
// OpAdd and OpSubtract and is ignored by the other operations. Every entry
// is saturated to [0,255].
func (o Op) LUT(value int) (*[256]uint8, error) {
	var lut [256]uint8
	for p := 0; p < 256; p++ {
		x := float64(p) / 255
		switch o {
		case OpAdd:
			lut[p] = uint8(clamp(p+value, 0, 255))
		case OpSubtract:
			lut[p] = uint8(clamp(p-value, 0, 255))
		case OpCube:
			lut[p] = uint8(math.RoundToEven(clampFloat(x*x*x, 0, 1) * 255))
		case OpSquare:
			lut[p] = uint8(math.RoundToEven(clampFloat(x*x, 0, 1) * 255))
		case OpNegative:
			lut[p] = uint8(255 - p)
		case OpLog:
			lut[p] = uint8(clampFloat(255*math.Log1p(x), 0, 255))
		case OpSqrt:
			lut[p] = uint8(clampFloat(255*math.Sqrt(x), 0, 255))
		default:
			return nil, &InvalidOperationError{Op: o.String()}
		}
	}
	return &lut, nil
}

// Elementwise maps every pixel of src through o.
func Elementwise(src *image.Gray, o Op, value int) (*image.Gray, error) {
	lut, err := o.LUT(value)
	if err != nil {
		return nil, err
	}
	return applyLUT(src, lut), nil
}

func applyLUT(src *image.Gray, lut *[256]uint8) *image.Gray {
	dst := newGrayLike(src)
	w := dst.Bounds().Dx()
	for y := 0; y < dst.Bounds().Dy(); y++ {
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, p := range row(src, y) {
			out[x] = lut[p]
		}
	}
	return dst
}
