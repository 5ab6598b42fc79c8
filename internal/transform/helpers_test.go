package transform

import (
	"image"
	"testing"
)

func filledGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func impulseGray(w, h, x, y int, background, peak uint8) *image.Gray {
	img := filledGray(w, h, background)
	img.Pix[y*img.Stride+x] = peak
	return img
}

func halfSplitGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := h / 2; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = 255
		}
	}
	return img
}

func assertUniform(t *testing.T, img *image.Gray, want uint8) {
	t.Helper()
	for i, p := range img.Pix {
		if p != want {
			t.Fatalf("expected uniform %d, got %d at index %d", want, p, i)
		}
	}
}

func assertSize(t *testing.T, img *image.Gray, w, h int) {
	t.Helper()
	if got := img.Bounds(); got.Dx() != w || got.Dy() != h || got.Min != (image.Point{}) {
		t.Fatalf("expected %dx%d grid at origin, got %v", w, h, got)
	}
}

func assertBinary(t *testing.T, img *image.Gray) {
	t.Helper()
	for i, p := range img.Pix {
		if p != 0 && p != 255 {
			t.Fatalf("expected binary output, got %d at index %d", p, i)
		}
	}
}
