package transform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const (
	defaultEdgeLowThreshold  = 100
	defaultEdgeHighThreshold = 200
)

var (
	tan22 = math.Tan(22.5 * math.Pi / 180)
	tan67 = math.Tan(67.5 * math.Pi / 180)
)

// EdgeParams represents typed parameters for the Canny edge detector
type EdgeParams struct {
	LowThreshold  float64
	HighThreshold float64
	// L2Gradient selects the Euclidean gradient norm instead of |dx|+|dy|.
	L2Gradient bool
}

// NewEdgeParamsFromMap creates EdgeParams from a generic map
func NewEdgeParamsFromMap(params map[string]any) (*EdgeParams, error) {
	if err := ValidateKnownParams(params, "lowThreshold", "highThreshold", "l2Gradient"); err != nil {
		return nil, err
	}
	p := &EdgeParams{
		LowThreshold:  GetFloatParam(params, "lowThreshold", defaultEdgeLowThreshold),
		HighThreshold: GetFloatParam(params, "highThreshold", defaultEdgeHighThreshold),
		L2Gradient:    GetBoolParam(params, "l2Gradient", false),
	}
	if p.LowThreshold < 0 || p.HighThreshold < 0 {
		return nil, fmt.Errorf("thresholds must not be negative, got %v/%v", p.LowThreshold, p.HighThreshold)
	}
	if p.LowThreshold > p.HighThreshold {
		p.LowThreshold, p.HighThreshold = p.HighThreshold, p.LowThreshold
	}
	return p, nil
}

// EdgeTransform produces a binary edge map using the Canny algorithm.
type EdgeTransform struct {
	params *EdgeParams
}

// NewEdgeTransform creates a new edge transform from configuration parameters
func NewEdgeTransform(params map[string]any) (Transform, error) {
	typedParams, err := NewEdgeParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &EdgeTransform{params: typedParams}, nil
}

func (t *EdgeTransform) Command() Command {
	return Edge
}

// GetParams returns the typed parameters
func (t *EdgeTransform) GetParams() *EdgeParams {
	return t.params
}

func (t *EdgeTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("EdgeTransform: detecting edges",
		"low_threshold", t.params.LowThreshold,
		"high_threshold", t.params.HighThreshold,
		"width", img.Width,
		"height", img.Height)

	w, h := img.Width, img.Height
	dx, dy, mag := t.gradients(img)

	const (
		notEdge = iota
		candidate
		edge
	)
	state := make([]uint8, w*h)
	low, high := t.params.LowThreshold, t.params.HighThreshold

	// magnitude outside the image counts as zero
	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	parallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			gx, gy := dx[i], dy[i]
			ax, ay := math.Abs(float64(gx)), math.Abs(float64(gy))

			var isMax bool
			switch {
			case ay < ax*tan22:
				isMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > ax*tan67:
				isMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (gx < 0) != (gy < 0) {
					s = -1
				}
				isMax = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !isMax {
				continue
			}
			if m > high {
				state[i] = edge
			} else {
				state[i] = candidate
			}
		}
	})

	// hysteresis: grow strong edges through connected candidates
	stack := make([]int, 0, w)
	for i, s := range state {
		if s == edge {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for oy := -1; oy <= 1; oy++ {
			for ox := -1; ox <= 1; ox++ {
				nx, ny := x+ox, y+oy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == candidate {
					state[j] = edge
					stack = append(stack, j)
				}
			}
		}
	}

	out := raster.New(w, h, raster.Gray)
	for i, s := range state {
		if s == edge {
			out.Pix[i] = 255
		}
	}
	return out, nil
}

// gradients computes 3x3 Sobel derivatives with replicated borders. For
// colour images each pixel keeps the derivatives of the channel with the
// largest magnitude.
func (t *EdgeTransform) gradients(img *raster.Image) (dx, dy []int32, mag []float64) {
	w, h, c := img.Width, img.Height, img.Channels
	dx = make([]int32, w*h)
	dy = make([]int32, w*h)
	mag = make([]float64, w*h)

	at := func(x, y, ch int) int32 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return int32(img.Pix[(y*w+x)*c+ch])
	}

	parallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			i := y*w + x
			best := -1.0
			for ch := 0; ch < c; ch++ {
				gx := (at(x+1, y-1, ch) + 2*at(x+1, y, ch) + at(x+1, y+1, ch)) -
					(at(x-1, y-1, ch) + 2*at(x-1, y, ch) + at(x-1, y+1, ch))
				gy := (at(x-1, y+1, ch) + 2*at(x, y+1, ch) + at(x+1, y+1, ch)) -
					(at(x-1, y-1, ch) + 2*at(x, y-1, ch) + at(x+1, y-1, ch))
				m := t.norm(gx, gy)
				if m > best {
					best = m
					dx[i], dy[i] = gx, gy
				}
			}
			mag[i] = best
		}
	})
	return dx, dy, mag
}

func (t *EdgeTransform) norm(gx, gy int32) float64 {
	if t.params.L2Gradient {
		return math.Hypot(float64(gx), float64(gy))
	}
	return math.Abs(float64(gx)) + math.Abs(float64(gy))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func init() {
	if err := register(Edge, NewEdgeTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Edge, err))
	}
}
