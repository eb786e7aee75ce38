package waveform

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode waveform png: %w", err)
	}
	return nil
}
