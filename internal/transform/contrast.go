package transform

import "image"

// LinearContrast stretches the intensity range of src to [0,255].
// A flat grid has no range to stretch and is returned as an unchanged copy.
func LinearContrast(src *image.Gray) *image.Gray {
	lo, hi := uint8(255), uint8(0)
	h := src.Bounds().Dy()
	for y := 0; y < h; y++ {
		for _, p := range row(src, y) {
			lo = min(lo, p)
			hi = max(hi, p)
		}
	}

	if hi <= lo {
		var identity [256]uint8
		for i := range identity {
			identity[i] = uint8(i)
		}
		return applyLUT(src, &identity)
	}

	var lut [256]uint8
	span := float64(hi - lo)
	for p := int(lo); p <= int(hi); p++ {
		lut[p] = uint8(float64(p-int(lo)) / span * 255)
	}
	return applyLUT(src, &lut)
}
