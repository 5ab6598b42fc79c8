//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/davidbyttow/govips/v2/vips"
)

// govipsCodec decodes through libvips, which accepts formats the Go decoders
// do not (HEIF, AVIF, JPEG 2000). Encoding stays on the std path.
type govipsCodec struct {
	stdCodec
}

func (c govipsCodec) Decode(ctx context.Context, data []byte) (*image.Gray, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyImage}
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("auto-rotate: %w", err)}
	}
	if err := img.ToColorSpace(vips.InterpretationBW); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("convert to grayscale: %w", err)}
	}
	if img.Bands() > 1 {
		if err := img.ExtractBand(0, 1); err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("drop alpha band: %w", err)}
		}
	}
	if err := img.Cast(vips.BandFormatUchar); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("cast to 8-bit: %w", err)}
	}

	raw, err := img.ToBytes()
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("read pixels: %w", err)}
	}

	width, height := img.Width(), img.Height()
	if len(raw) != width*height {
		return nil, &DecodeError{Err: fmt.Errorf("unexpected pixel buffer size %d for %dx%d", len(raw), width, height)}
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	copy(gray.Pix, raw)
	return gray, nil
}
