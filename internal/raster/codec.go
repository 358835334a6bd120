package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"

	defaultJPEGQuality = 95
)

var (
	ErrEmptyInput = errors.New("empty image data")
	ErrTooLarge   = errors.New("image exceeds pixel limit")
)

// DefaultMaxPixels bounds the canvas accepted by Decode.
const DefaultMaxPixels = 40_000_000

// Decode parses raw bytes in any registered raster format, or an SVG with an
// explicit size, into a 3-channel image. Images larger than DefaultMaxPixels
// are rejected with ErrTooLarge.
func Decode(data []byte) (*Image, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with a caller-supplied pixel limit. The limit is
// checked against the header before any pixel buffer is allocated.
func DecodeLimit(data []byte, maxPixels int) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, cfgErr := image.DecodeConfig(bytes.NewReader(data))
	if cfgErr != nil {
		if !isSVGData(data) {
			return nil, fmt.Errorf("failed to decode image: %w", cfgErr)
		}
		img, err := decodeSVG(data, maxPixels)
		if err != nil {
			return nil, err
		}
		return FromImageRGB(img), nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: decoded %s image has no pixels", ErrInvalidImage, format)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: decoded %s image has no pixels", ErrInvalidImage, format)
	}

	slog.Debug("raster: decoded image",
		"format", format,
		"width", b.Dx(),
		"height", b.Dy(),
		"input_size_bytes", len(data))

	return FromImageRGB(img), nil
}

func checkPixels(w, h, maxPixels int) error {
	if int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d is more than %d pixels", ErrTooLarge, w, h, maxPixels)
	}
	return nil
}

// Encoder writes images in the single configured output format.
type Encoder struct {
	Format  string
	Quality int
}

// NewEncoder validates the format name. An empty format selects PNG.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPNG:
		return Encoder{Format: FormatPNG}, nil
	case FormatJPEG, "jpg":
		if quality == 0 {
			quality = defaultJPEGQuality
		}
		if quality < 1 || quality > 100 {
			return Encoder{}, fmt.Errorf("jpeg quality must be between 1 and 100, got %d", quality)
		}
		return Encoder{Format: FormatJPEG, Quality: quality}, nil
	default:
		return Encoder{}, fmt.Errorf("unsupported output format: %s", format)
	}
}

// ContentType returns the MIME type of the encoded output.
func (e Encoder) ContentType() string {
	if e.Format == FormatJPEG {
		return mimeJPEG
	}
	return mimePNG
}

// Encode serialises img.
func (e Encoder) Encode(img *Image) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	// rough heuristic: 1 byte per pixel
	buf.Grow(img.Width * img.Height)

	switch e.Format {
	case FormatJPEG:
		quality := e.Quality
		if quality == 0 {
			quality = defaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG image: %w", err)
		}
	default:
		if err := png.Encode(&buf, img.ToImage()); err != nil {
			return nil, fmt.Errorf("failed to encode PNG image: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Marshal encodes img losslessly, preserving its channel count.
func Marshal(img *Image) ([]byte, error) {
	return Encoder{Format: FormatPNG}.Encode(img)
}

// Unmarshal reverses Marshal.
func Unmarshal(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image: %w", err)
	}
	return FromImage(src), nil
}
