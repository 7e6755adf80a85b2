package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultMaxWidth bounds screenshot width before transport; wider
// captures are scaled down proportionally.
const DefaultMaxWidth = 1568

// Downscale re-encodes a PNG screenshot so its width does not exceed
// maxWidth, preserving aspect ratio. Images already within the bound are
// returned unchanged. maxWidth <= 0 selects DefaultMaxWidth.
func Downscale(pngData []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	src, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return pngData, nil
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encoding screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
