package transform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jo-hoe/imagebot/internal/raster"
)

// HistogramTransform converts to luminance and equalises the global histogram.
type HistogramTransform struct{}

// NewHistogramTransform accepts no parameters.
func NewHistogramTransform(params map[string]any) (Transform, error) {
	if err := ValidateKnownParams(params); err != nil {
		return nil, err
	}
	return &HistogramTransform{}, nil
}

func (t *HistogramTransform) Command() Command {
	return Histogram
}

func (t *HistogramTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	gray := toGray(img)
	lut := equalizationLUT(gray.Pix)
	for i, v := range gray.Pix {
		gray.Pix[i] = lut[v]
	}

	slog.Debug("HistogramTransform: histogram equalised",
		"width", gray.Width, "height", gray.Height)
	return gray, nil
}

// equalizationLUT maps each level through the normalised cumulative
// histogram, starting from the first populated bin. An image with a single
// level is left unchanged.
func equalizationLUT(pix []uint8) [256]uint8 {
	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}

	var lut [256]uint8
	first := 0
	for first < 255 && hist[first] == 0 {
		first++
	}

	total := len(pix)
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		lut[i] = uint8(math.Min(255, math.Round(float64(sum)*scale)))
	}
	return lut
}

func init() {
	if err := register(Histogram, NewHistogramTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Histogram, err))
	}
}
