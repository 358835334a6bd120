package transform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const defaultSamplingFactor = 2

// SamplingParams represents typed parameters for downsampling
type SamplingParams struct {
	// Factor divides both dimensions; results truncate toward zero.
	Factor int
}

// NewSamplingParamsFromMap creates SamplingParams from a generic map
func NewSamplingParamsFromMap(params map[string]any) (*SamplingParams, error) {
	if err := ValidateKnownParams(params, "factor"); err != nil {
		return nil, err
	}
	if err := ValidateIntParams(params, "factor"); err != nil {
		return nil, err
	}
	p := &SamplingParams{
		Factor: GetIntParam(params, "factor", defaultSamplingFactor),
	}
	if p.Factor < 1 {
		return nil, fmt.Errorf("factor must be at least 1, got %d", p.Factor)
	}
	return p, nil
}

// SamplingTransform reduces resolution with area-averaging interpolation.
type SamplingTransform struct {
	params *SamplingParams
}

// NewSamplingTransform creates a new sampling transform from configuration parameters
func NewSamplingTransform(params map[string]any) (Transform, error) {
	typedParams, err := NewSamplingParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &SamplingTransform{params: typedParams}, nil
}

func (t *SamplingTransform) Command() Command {
	return Sampling
}

// GetParams returns the typed parameters
func (t *SamplingTransform) GetParams() *SamplingParams {
	return t.params
}

func (t *SamplingTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	dw := img.Width / t.params.Factor
	dh := img.Height / t.params.Factor
	if dw == 0 || dh == 0 {
		return nil, fmt.Errorf("image %dx%d is too small to sample by factor %d",
			img.Width, img.Height, t.params.Factor)
	}

	slog.Debug("SamplingTransform: resizing",
		"original_width", img.Width,
		"original_height", img.Height,
		"target_width", dw,
		"target_height", dh)

	return resizeArea(img, dw, dh), nil
}

// areaWeight is the share of one source cell in a destination cell.
type areaWeight struct {
	src    int
	weight float64
}

// areaWeights returns, for every destination index, the source cells it
// covers and the fraction of the destination cell each one fills.
func areaWeights(srcLen, dstLen int) [][]areaWeight {
	scale := float64(srcLen) / float64(dstLen)
	table := make([][]areaWeight, dstLen)
	for d := 0; d < dstLen; d++ {
		from := float64(d) * scale
		to := math.Min(from+scale, float64(srcLen))
		for s := int(from); float64(s) < to && s < srcLen; s++ {
			overlap := math.Min(to, float64(s+1)) - math.Max(from, float64(s))
			if overlap <= 0 {
				continue
			}
			table[d] = append(table[d], areaWeight{src: s, weight: overlap / scale})
		}
	}
	return table
}

func resizeArea(img *raster.Image, dw, dh int) *raster.Image {
	c := img.Channels
	xw := areaWeights(img.Width, dw)
	yw := areaWeights(img.Height, dh)

	// horizontal pass over every source row
	tmpStride := dw * c
	tmp := make([]float64, img.Height*tmpStride)
	parallelFor(img.Height, func(y int) {
		in := img.Row(y)
		row := tmp[y*tmpStride : (y+1)*tmpStride]
		for x, weights := range xw {
			for ch := 0; ch < c; ch++ {
				sum := 0.0
				for _, aw := range weights {
					sum += aw.weight * float64(in[aw.src*c+ch])
				}
				row[x*c+ch] = sum
			}
		}
	})

	out := raster.New(dw, dh, c)
	parallelFor(dh, func(y int) {
		row := out.Row(y)
		for i := range row {
			sum := 0.0
			for _, aw := range yw[y] {
				sum += aw.weight * tmp[aw.src*tmpStride+i]
			}
			row[i] = saturate(sum)
		}
	})
	return out
}

func init() {
	if err := register(Sampling, NewSamplingTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Sampling, err))
	}
}
