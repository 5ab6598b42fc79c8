package pipeline

import (
	"context"
	"errors"
	"image"
	"image/draw"
)

const (
	OutputFormat       = "jpeg"
	OutputExtension    = ".jpg"
	DefaultJPEGQuality = 95
)

var ErrEmptyImage = errors.New("image buffer is empty")

// DecodeError reports bytes that could not be turned into a grayscale grid.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Codec decodes uploaded images into grayscale grids and encodes grids as JPEG.
type Codec interface {
	Decode(ctx context.Context, data []byte) (*image.Gray, error)
	Encode(img *image.Gray, quality int) ([]byte, error)
}

func normalizeQuality(quality int) int {
	if quality <= 0 || quality > 100 {
		return DefaultJPEGQuality
	}
	return quality
}

// toGray converts a decoded image into a grid anchored at the origin, using
// BT.601 luma weights and ignoring alpha.
func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch img := src.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			start := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], img.Pix[start:start+b.Dx()])
		}
	case *image.YCbCr:
		for y := 0; y < b.Dy(); y++ {
			start := img.YOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], img.Y[start:start+b.Dx()])
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
				dst.Pix[y*dst.Stride+x] = luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			}
		}
	default:
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}
	return dst
}

func luma(r, g, b uint8) uint8 {
	return uint8((19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16)
}
