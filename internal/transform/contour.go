package transform

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/imagebot/internal/raster"
)

const (
	defaultContourThreshold = 127
	defaultContourThickness = 3
)

// contourColor is the outline colour in RGB order.
var contourColor = [3]uint8{0, 255, 0}

// ContourParams represents typed parameters for contour detection
type ContourParams struct {
	// Threshold binarises the luminance: values above it are foreground.
	Threshold int
	Thickness int
}

// NewContourParamsFromMap creates ContourParams from a generic map
func NewContourParamsFromMap(params map[string]any) (*ContourParams, error) {
	if err := ValidateKnownParams(params, "threshold", "thickness"); err != nil {
		return nil, err
	}
	if err := ValidateIntParams(params, "threshold", "thickness"); err != nil {
		return nil, err
	}
	p := &ContourParams{
		Threshold: GetIntParam(params, "threshold", defaultContourThreshold),
		Thickness: GetIntParam(params, "thickness", defaultContourThickness),
	}
	if p.Threshold < 0 || p.Threshold > 255 {
		return nil, fmt.Errorf("threshold must be between 0 and 255, got %d", p.Threshold)
	}
	if p.Thickness <= 0 {
		return nil, fmt.Errorf("thickness must be positive, got %d", p.Thickness)
	}
	return p, nil
}

// ContourTransform outlines every border of the thresholded image onto a
// copy of the source.
type ContourTransform struct {
	params *ContourParams
	brush  []image.Point
}

// NewContourTransform creates a new contour transform from configuration parameters
func NewContourTransform(params map[string]any) (Transform, error) {
	typedParams, err := NewContourParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ContourTransform{
		params: typedParams,
		brush:  discBrush(typedParams.Thickness),
	}, nil
}

func (t *ContourTransform) Command() Command {
	return Contour
}

// GetParams returns the typed parameters
func (t *ContourTransform) GetParams() *ContourParams {
	return t.params
}

func (t *ContourTransform) Apply(img *raster.Image) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	gray := toGray(img)
	threshold := uint8(t.params.Threshold)
	for i, v := range gray.Pix {
		if v > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}

	contours := findContours(gray.Pix, gray.Width, gray.Height)
	slog.Debug("ContourTransform: contours found",
		"count", len(contours),
		"threshold", t.params.Threshold)

	out := img.Clone()
	for _, c := range contours {
		t.drawClosed(out, approxSimple(c.Points))
	}
	return out, nil
}

func (t *ContourTransform) drawClosed(img *raster.Image, pts []image.Point) {
	if len(pts) == 1 {
		t.stamp(img, pts[0])
		return
	}
	for i := range pts {
		drawLine(pts[i], pts[(i+1)%len(pts)], func(p image.Point) {
			t.stamp(img, p)
		})
	}
}

func (t *ContourTransform) stamp(img *raster.Image, p image.Point) {
	for _, o := range t.brush {
		x, y := p.X+o.X, p.Y+o.Y
		if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
			continue
		}
		off := img.Offset(x, y)
		for ch := 0; ch < img.Channels; ch++ {
			img.Pix[off+ch] = contourColor[ch]
		}
	}
}

// discBrush returns the pixel offsets covered by a disc of the given diameter.
func discBrush(thickness int) []image.Point {
	r := float64(thickness) / 2
	ri := thickness / 2
	var pts []image.Point
	for y := -ri; y <= ri; y++ {
		for x := -ri; x <= ri; x++ {
			if float64(x*x+y*y) <= r*r {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// drawLine visits every pixel of the Bresenham line from a to b inclusive.
func drawLine(a, b image.Point, plot func(image.Point)) {
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	p := a
	for {
		plot(p)
		if p == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			p.X += sx
		}
		if e2 <= dx {
			e += dx
			p.Y += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func init() {
	if err := register(Contour, NewContourTransform); err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", Contour, err))
	}
}
