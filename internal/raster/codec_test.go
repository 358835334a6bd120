package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_PNGAlwaysYieldsRGB(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range gray.Pix {
		gray.Pix[i] = 200
	}

	img, err := Decode(encodeTestPNG(t, gray))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Channels != RGB {
		t.Fatalf("Expected %d channels, got %d", RGB, img.Channels)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Fatalf("Expected 4x3, got %dx%d", img.Width, img.Height)
	}
	for i, v := range img.Pix {
		if v != 200 {
			t.Fatalf("sample %d: expected 200, got %d", i, v)
		}
	}
}

func TestDecode_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		src.Pix[i*4] = 10
		src.Pix[i*4+1] = 20
		src.Pix[i*4+2] = 30
		src.Pix[i*4+3] = 255
	}

	img, err := Decode(encodeTestPNG(t, src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Pix[0] != 10 || img.Pix[1] != 20 || img.Pix[2] != 30 {
		t.Errorf("Expected [10 20 30], got %v", img.Pix[:3])
	}
}

func TestDecode_JPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 16 || img.Height != 16 || img.Channels != RGB {
		t.Errorf("unexpected shape %dx%dx%d", img.Width, img.Height, img.Channels)
	}
}

func TestDecode_InvalidData(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a valid image")},
		{"truncated png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}},
		{"svg without size", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"></svg>`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); err == nil {
				t.Error("Expected error for invalid image data")
			}
		})
	}
}

func TestDecode_SVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="20" height="10">
<rect x="0" y="0" width="10" height="10" fill="#000000"/>
</svg>`)

	img, err := Decode(svg)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 20 || img.Height != 10 {
		t.Fatalf("Expected 20x10, got %dx%d", img.Width, img.Height)
	}
	// right half stays on the white background
	off := img.Offset(15, 5)
	if img.Pix[off] != 255 || img.Pix[off+1] != 255 || img.Pix[off+2] != 255 {
		t.Errorf("Expected white background, got %v", img.Pix[off:off+3])
	}
	off = img.Offset(5, 5)
	if img.Pix[off] != 0 {
		t.Errorf("Expected black rectangle, got %v", img.Pix[off:off+3])
	}
}

func TestParseSVGExplicitSize(t *testing.T) {
	testCases := []struct {
		name  string
		svg   string
		w, h  int
		found bool
	}{
		{"pixels", `<svg width="120px" height="80px">`, 120, 80, true},
		{"single quotes", `<svg height='5' width='7'>`, 7, 5, true},
		{"newline separated", "<svg\nwidth=\"3\"\nheight=\"4\">", 3, 4, true},
		{"stroke width only", `<svg stroke-width="2" viewBox="0 0 1 1">`, 0, 0, false},
		{"missing height", `<svg width="10">`, 0, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, ok := parseSVGExplicitSize([]byte(tc.svg))
			if ok != tc.found || w != tc.w || h != tc.h {
				t.Errorf("Expected (%d, %d, %v), got (%d, %d, %v)", tc.w, tc.h, tc.found, w, h, ok)
			}
		})
	}
}

func TestMarshal_PreservesChannels(t *testing.T) {
	for _, channels := range []int{Gray, RGB} {
		img := New(5, 4, channels)
		for i := range img.Pix {
			img.Pix[i] = uint8(i * 7)
		}

		data, err := Marshal(img)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		got, err := Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !got.Equal(img) {
			t.Errorf("channels=%d: round trip changed the image", channels)
		}
	}
}

func TestEncoder(t *testing.T) {
	img := NewUniform(8, 8, RGB, 128)

	pngEnc, err := NewEncoder("", 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if pngEnc.ContentType() != "image/png" {
		t.Errorf("Expected image/png, got %s", pngEnc.ContentType())
	}
	data, err := pngEnc.Encode(img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Result is not valid PNG: %v", err)
	}
	if c := color.RGBAModel.Convert(decoded.At(3, 3)).(color.RGBA); c.R != 128 {
		t.Errorf("Expected 128, got %d", c.R)
	}

	jpegEnc, err := NewEncoder("JPG", 0)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if jpegEnc.Quality != 95 || jpegEnc.ContentType() != "image/jpeg" {
		t.Errorf("unexpected jpeg encoder %+v", jpegEnc)
	}
	if _, err := jpegEnc.Encode(img); err != nil {
		t.Errorf("jpeg Encode failed: %v", err)
	}

	if _, err := NewEncoder("gif", 0); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if _, err := NewEncoder("jpeg", 101); err == nil {
		t.Error("Expected error for out of range quality")
	}
	if _, err := pngEnc.Encode(&Image{Width: 2, Height: 2, Channels: 4}); err == nil {
		t.Error("Expected error for invalid image")
	}
}

// pngHeader builds a PNG holding only an IHDR and IEND chunk, which is
// enough for image.DecodeConfig to report the canvas size.
func pngHeader(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	writePNGChunk(&buf, "IHDR", ihdr)
	writePNGChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writePNGChunk(buf *bytes.Buffer, kind string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	buf.Write(n[:])
	body := append([]byte(kind), data...)
	buf.Write(body)
	binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(body))
	buf.Write(n[:])
}

func TestDecode_RejectsOversizedCanvas(t *testing.T) {
	testCases := []struct {
		name      string
		data      []byte
		maxPixels int
	}{
		{"large png header", pngHeader(100000, 100000), DefaultMaxPixels},
		{"just over default", pngHeader(8000, 5001), DefaultMaxPixels},
		{"encoded png over custom limit", encodeTestPNG(t, image.NewGray(image.Rect(0, 0, 200, 100))), 10000},
		{"svg over custom limit", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100"></svg>`), 10000},
		{"svg over side limit", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="9000" height="10"></svg>`), DefaultMaxPixels},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img, err := DecodeLimit(tc.data, tc.maxPixels)
			if !errors.Is(err, ErrTooLarge) {
				t.Fatalf("Expected ErrTooLarge, got %v", err)
			}
			if img != nil {
				t.Error("Expected no image for an oversized canvas")
			}
		})
	}
}

func TestDecodeLimit_AcceptsAtLimit(t *testing.T) {
	data := encodeTestPNG(t, image.NewGray(image.Rect(0, 0, 100, 100)))
	img, err := DecodeLimit(data, 10000)
	if err != nil {
		t.Fatalf("DecodeLimit failed: %v", err)
	}
	if img.Width != 100 || img.Height != 100 {
		t.Errorf("Expected 100x100, got %dx%d", img.Width, img.Height)
	}
}

func TestDecode_PNGMentioningSVGStaysRaster(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 42
	}
	plain := encodeTestPNG(t, src)

	// insert a tEXt chunk right after the 8-byte signature and the 25-byte IHDR chunk
	var buf bytes.Buffer
	buf.Write(plain[:33])
	writePNGChunk(&buf, "tEXt", []byte("Comment\x00exported from <svg width=\"1\" height=\"1\">"))
	buf.Write(plain[33:])

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 3 || img.Height != 2 || img.Pix[0] != 42 {
		t.Errorf("Expected the 3x2 raster, got %dx%d first sample %d", img.Width, img.Height, img.Pix[0])
	}
}
