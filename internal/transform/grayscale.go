package transform

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/imagebot/internal/raster"
)

// Fixed-point luminance weights (0.299, 0.587, 0.114) scaled by 1<<14.
const (
	lumaShift = 14
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaRound = 1 << (lumaShift - 1)
)

// luma returns the perceptual luminance of one RGB sample.
func luma(r, g, b uint8) uint8 {
	return uint8((int(r)*lumaR + int(g)*lumaG + int(b)*lumaB + lumaRound) >> lumaShift)
}

// toGray converts img to a single channel. Gray input is copied.
func toGray(img *raster.Image) *raster.Image {
	if img.Channels == raster.Gray {
		return img.Clone()
	}
	out := raster.New(img.Width, img.Height, raster.Gray)
	parallelFor(img.Height, func(y int) {
		in := img.Row(y)
		row := out.Row(y)
		for x := range row {
			row[x] = luma(in[x*3], in[x*3+1], in[x*3+2])
		}
	})
	return out
}

// BlackWhiteTransform converts colour images to luminance.
type BlackWhiteTransform struct{}

// NewBlackWhiteTransform accepts no parameters.
func NewBlackWhiteTransform(params map[string]any) (Transform, error) {
	if err := ValidateKnownParams(params); err != nil {
		return nil, err
	}
	return &BlackWhiteTransform{}, nil
}

func (t *BlackWhiteTransform) Command() Command {
	return BlackWhite
}

func (t *BlackWhiteTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("BlackWhiteTransform: converting to luminance",
		"width", img.Width, "height", img.Height, "channels", img.Channels)
	return toGray(img), nil
}

func init() {
	if err := register(BlackWhite, NewBlackWhiteTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", BlackWhite, err))
	}
}
