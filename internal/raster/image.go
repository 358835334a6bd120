package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

const (
	// Gray is the channel count of single-channel (grayscale or binary) images.
	Gray = 1
	// RGB is the channel count of colour images. Samples are interleaved R, G, B.
	RGB = 3
)

var ErrInvalidImage = errors.New("invalid image")

// Image is an in-memory raster of 8-bit samples stored row-major with
// Width*Channels samples per row.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// New allocates a zeroed image.
func New(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// NewUniform allocates an image where every sample equals v.
func NewUniform(width, height, channels int, v uint8) *Image {
	img := New(width, height, channels)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Validate reports whether the image header and pixel buffer agree.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %dx%d", ErrInvalidImage, img.Width, img.Height)
	}
	if img.Channels != Gray && img.Channels != RGB {
		return fmt.Errorf("%w: unsupported channel count %d", ErrInvalidImage, img.Channels)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pix) < want {
		return fmt.Errorf("%w: pixel buffer has %d samples, want %d", ErrInvalidImage, len(img.Pix), want)
	}
	return nil
}

// Stride returns the number of samples in one row.
func (img *Image) Stride() int {
	return img.Width * img.Channels
}

// Offset returns the index of the first sample of pixel (x, y).
func (img *Image) Offset(x, y int) int {
	return y*img.Stride() + x*img.Channels
}

// Row returns the samples of row y.
func (img *Image) Row(y int) []uint8 {
	s := img.Stride()
	return img.Pix[y*s : (y+1)*s]
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Channels: img.Channels}
	out.Pix = make([]uint8, len(img.Pix))
	copy(out.Pix, img.Pix)
	return out
}

// Equal reports whether both images have the same shape and samples.
func (img *Image) Equal(other *Image) bool {
	if img == nil || other == nil {
		return img == other
	}
	if img.Width != other.Width || img.Height != other.Height || img.Channels != other.Channels {
		return false
	}
	if len(img.Pix) != len(other.Pix) {
		return false
	}
	for i := range img.Pix {
		if img.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts a decoded image. Gray models keep a single channel,
// everything else becomes RGB with alpha discarded.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch s := src.(type) {
	case *image.Gray:
		out := New(w, h, Gray)
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Row(y), s.Pix[off:off+w])
		}
		return out
	case *image.Gray16:
		out := New(w, h, Gray)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = uint8(s.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return out
	}
	return FromImageRGB(src)
}

// FromImageRGB converts any decoded image into a 3-channel raster.
func FromImageRGB(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := New(w, h, RGB)

	if s, ok := src.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			row := out.Row(y)
			in := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				row[x*3] = in[x*4]
				row[x*3+1] = in[x*4+1]
				row[x*3+2] = in[x*4+2]
			}
		}
		return out
	}

	for y := 0; y < h; y++ {
		row := out.Row(y)
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x*3] = c.R
			row[x*3+1] = c.G
			row[x*3+2] = c.B
		}
	}
	return out
}

// ToImage converts the raster into a standard library image.
func (img *Image) ToImage() image.Image {
	r := image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == Gray {
		g := image.NewGray(r)
		copy(g.Pix, img.Pix)
		return g
	}
	out := image.NewRGBA(r)
	n := img.Width * img.Height
	for i := 0; i < n; i++ {
		out.Pix[i*4] = img.Pix[i*3]
		out.Pix[i*4+1] = img.Pix[i*3+1]
		out.Pix[i*4+2] = img.Pix[i*3+2]
		out.Pix[i*4+3] = 0xff
	}
	return out
}
