package transform

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const (
	defaultMorphKernelSize = 5
	defaultMorphIterations = 1
)

// MorphParams represents typed parameters for erosion and dilation with a
// square all-ones structuring element
type MorphParams struct {
	KernelSize int
	Iterations int
}

// NewMorphParamsFromMap creates MorphParams from a generic map
func NewMorphParamsFromMap(params map[string]any) (*MorphParams, error) {
	if err := ValidateKnownParams(params, "kernelSize", "iterations"); err != nil {
		return nil, err
	}
	if err := ValidateIntParams(params, "kernelSize", "iterations"); err != nil {
		return nil, err
	}
	p := &MorphParams{
		KernelSize: GetIntParam(params, "kernelSize", defaultMorphKernelSize),
		Iterations: GetIntParam(params, "iterations", defaultMorphIterations),
	}
	if p.KernelSize <= 0 {
		return nil, fmt.Errorf("kernelSize must be positive, got %d", p.KernelSize)
	}
	if p.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", p.Iterations)
	}
	return p, nil
}

// MorphTransform replaces each sample with the minimum (erosion) or maximum
// (dilation) over the structuring element. Samples outside the image are
// ignored.
type MorphTransform struct {
	command Command
	params  *MorphParams
	pick    func(a, b uint8) uint8
}

// NewErosionTransform creates a new erosion transform from configuration parameters
func NewErosionTransform(params map[string]any) (Transform, error) {
	return newMorphTransform(Erosion, params, minUint8)
}

// NewDilationTransform creates a new dilation transform from configuration parameters
func NewDilationTransform(params map[string]any) (Transform, error) {
	return newMorphTransform(Dilation, params, maxUint8)
}

func newMorphTransform(cmd Command, params map[string]any, pick func(a, b uint8) uint8) (Transform, error) {
	typedParams, err := NewMorphParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &MorphTransform{command: cmd, params: typedParams, pick: pick}, nil
}

func (t *MorphTransform) Command() Command {
	return t.command
}

// GetParams returns the typed parameters
func (t *MorphTransform) GetParams() *MorphParams {
	return t.params
}

func (t *MorphTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("MorphTransform: applying structuring element",
		"command", t.command.String(),
		"kernel_size", t.params.KernelSize,
		"iterations", t.params.Iterations)

	out := img
	for i := 0; i < t.params.Iterations; i++ {
		out = t.pass(out)
	}
	return out, nil
}

// pass runs one iteration as a horizontal then a vertical sliding window,
// which is equivalent to the full rectangular window.
func (t *MorphTransform) pass(img *raster.Image) *raster.Image {
	w, h, c := img.Width, img.Height, img.Channels
	anchor := t.params.KernelSize / 2
	before, after := anchor, t.params.KernelSize-1-anchor

	tmp := raster.New(w, h, c)
	parallelFor(h, func(y int) {
		in := img.Row(y)
		row := tmp.Row(y)
		for x := 0; x < w; x++ {
			lo, hi := max(x-before, 0), min(x+after, w-1)
			for ch := 0; ch < c; ch++ {
				v := in[lo*c+ch]
				for sx := lo + 1; sx <= hi; sx++ {
					v = t.pick(v, in[sx*c+ch])
				}
				row[x*c+ch] = v
			}
		}
	})

	out := raster.New(w, h, c)
	stride := w * c
	parallelFor(h, func(y int) {
		lo, hi := max(y-before, 0), min(y+after, h-1)
		row := out.Row(y)
		for i := 0; i < stride; i++ {
			v := tmp.Pix[lo*stride+i]
			for sy := lo + 1; sy <= hi; sy++ {
				v = t.pick(v, tmp.Pix[sy*stride+i])
			}
			row[i] = v
		}
	})
	return out
}

func minUint8(a, b uint8) uint8 {
	if b < a {
		return b
	}
	return a
}

func maxUint8(a, b uint8) uint8 {
	if b > a {
		return b
	}
	return a
}

func init() {
	if err := register(Erosion, NewErosionTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Erosion, err))
	}
	if err := register(Dilation, NewDilationTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Dilation, err))
	}
}
