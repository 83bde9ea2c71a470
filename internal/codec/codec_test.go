package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

func encodePNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode png fixture: %v", err)
	}
	return buf.Bytes()
}

func TestOpenDecoderProbesByContent(t *testing.T) {
	r := DefaultRegistry()

	jpegDec, err := r.OpenDecoder(encodeJPEG(t, 40, 30))
	if err != nil {
		t.Fatalf("open jpeg: %v", err)
	}
	defer jpegDec.Close()
	if !jpegDec.SupportsRotation() {
		t.Fatal("jpeg decoder must support decode-time rotation")
	}
	if jpegDec.Width(0) != 40 || jpegDec.Height(0) != 30 {
		t.Fatalf("expected 40x30, got %dx%d", jpegDec.Width(0), jpegDec.Height(0))
	}

	pngDec, err := r.OpenDecoder(encodePNGBytes(t, 20, 10))
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer pngDec.Close()
	if pngDec.SupportsRotation() || pngDec.Tiled() {
		t.Fatal("png decoder must be the generic variant")
	}
}

func TestOpenDecoderRejectsUnknownBytes(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.OpenDecoder([]byte("plain text, not pixels")); !errors.Is(err, iiif.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEncoderLookup(t *testing.T) {
	r := DefaultRegistry()
	for _, format := range []string{"jpg", "jpeg", "png", "tif", "tiff", "gif", "bmp"} {
		if _, err := r.EncoderFor(format); err != nil {
			t.Fatalf("expected encoder for %q, got %v", format, err)
		}
	}
	if _, err := r.EncoderFor("xpm"); !errors.Is(err, iiif.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestJPEGDecodeRegion(t *testing.T) {
	r := DefaultRegistry()
	dec, err := r.OpenDecoder(encodeJPEG(t, 64, 64))
	if err != nil {
		t.Fatalf("open jpeg: %v", err)
	}
	defer dec.Close()

	img, err := dec.Decode(0, image.Rect(16, 16, 48, 32), 0)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Fatalf("expected 32x16 region, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestJPEGDecodeRotationSwapsAxes(t *testing.T) {
	r := DefaultRegistry()
	dec, err := r.OpenDecoder(encodeJPEG(t, 64, 32))
	if err != nil {
		t.Fatalf("open jpeg: %v", err)
	}
	defer dec.Close()

	img, err := dec.Decode(0, image.Rect(0, 0, 64, 32), 90)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 64 {
		t.Fatalf("expected 32x64 rotated output, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestDecodeClampsOvershootingRegion(t *testing.T) {
	r := DefaultRegistry()
	dec, err := r.OpenDecoder(encodePNGBytes(t, 50, 50))
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer dec.Close()

	// Ceil-projected regions may overshoot by a pixel; the decoder clamps.
	img, err := dec.Decode(0, image.Rect(40, 40, 51, 51), 0)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Fatalf("expected clamped 10x10 region, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestDecodeRegionFullyOutsideLevel(t *testing.T) {
	r := DefaultRegistry()
	dec, err := r.OpenDecoder(encodePNGBytes(t, 50, 50))
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer dec.Close()

	if _, err := dec.Decode(0, image.Rect(100, 100, 120, 120), 0); !errors.Is(err, iiif.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("jpg"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", got)
	}
	if got := ContentType("TIFF"); got != "image/tiff" {
		t.Fatalf("expected image/tiff, got %s", got)
	}
	if got := ContentType("mystery"); got != "application/octet-stream" {
		t.Fatalf("expected fallback content type, got %s", got)
	}
}
