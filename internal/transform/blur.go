package transform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const defaultBlurKernelSize = 15

// BlurParams represents typed parameters for the Gaussian blur
type BlurParams struct {
	KernelSize int
	// Sigma <= 0 derives the standard deviation from KernelSize.
	Sigma float64
}

// NewBlurParamsFromMap creates BlurParams from a generic map
func NewBlurParamsFromMap(params map[string]any) (*BlurParams, error) {
	if err := ValidateKnownParams(params, "kernelSize", "sigma"); err != nil {
		return nil, err
	}
	if err := ValidateIntParams(params, "kernelSize"); err != nil {
		return nil, err
	}
	p := &BlurParams{
		KernelSize: GetIntParam(params, "kernelSize", defaultBlurKernelSize),
		Sigma:      GetFloatParam(params, "sigma", 0),
	}
	if p.KernelSize <= 0 || p.KernelSize%2 == 0 {
		return nil, fmt.Errorf("kernelSize must be a positive odd number, got %d", p.KernelSize)
	}
	return p, nil
}

// BlurTransform smooths the image with a symmetric Gaussian kernel.
type BlurTransform struct {
	params *BlurParams
	kernel []float64
}

// NewBlurTransform creates a new blur transform from configuration parameters
func NewBlurTransform(params map[string]any) (Transform, error) {
	typedParams, err := NewBlurParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &BlurTransform{
		params: typedParams,
		kernel: gaussianKernel(typedParams.KernelSize, typedParams.Sigma),
	}, nil
}

func (t *BlurTransform) Command() Command {
	return Blur
}

// GetParams returns the typed parameters
func (t *BlurTransform) GetParams() *BlurParams {
	return t.params
}

func (t *BlurTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("BlurTransform: applying gaussian kernel",
		"kernel_size", t.params.KernelSize,
		"width", img.Width,
		"height", img.Height)

	w, h, c := img.Width, img.Height, img.Channels
	radius := len(t.kernel) / 2
	stride := w * c

	// horizontal pass
	tmp := make([]float64, h*stride)
	parallelFor(h, func(y int) {
		in := img.Row(y)
		row := tmp[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				sum := 0.0
				for k, weight := range t.kernel {
					sx := reflect101(x+k-radius, w)
					sum += weight * float64(in[sx*c+ch])
				}
				row[x*c+ch] = sum
			}
		}
	})

	// vertical pass
	out := raster.New(w, h, c)
	parallelFor(h, func(y int) {
		row := out.Row(y)
		for i := 0; i < stride; i++ {
			sum := 0.0
			for k, weight := range t.kernel {
				sy := reflect101(y+k-radius, h)
				sum += weight * tmp[sy*stride+i]
			}
			row[i] = saturate(sum)
		}
	})

	return out, nil
}

// gaussianKernel returns normalised 1-D weights. A non-positive sigma is
// derived from the size as 0.3*((size-1)*0.5-1)+0.8.
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	kernel := make([]float64, size)
	center := float64(size-1) / 2
	scale := -0.5 / (sigma * sigma)
	sum := 0.0
	for i := range kernel {
		d := float64(i) - center
		kernel[i] = math.Exp(scale * d * d)
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 maps an out-of-range index back into [0, n) mirroring around
// the edge pixel without repeating it (dcb|abcd|cba).
func reflect101(p, n int) int {
	if n == 1 {
		return 0
	}
	for p < 0 || p >= n {
		if p < 0 {
			p = -p
		}
		if p >= n {
			p = 2*n - 2 - p
		}
	}
	return p
}

// saturate rounds v to the nearest integer and clamps it to [0, 255].
func saturate(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

func init() {
	if err := register(Blur, NewBlurTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Blur, err))
	}
}
