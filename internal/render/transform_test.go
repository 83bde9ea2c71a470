package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

// asymmetric builds a 4x2 image with a single red pixel at (0,0) so that
// orientation mistakes are visible.
func asymmetric() *image.NRGBA {
	img := imaging.New(4, 2, color.NRGBA{A: 255})
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	return img
}

func TestTransformSkipsScalingWhenSizesMatch(t *testing.T) {
	src := asymmetric()
	out := Transform(src, 4, 2, 0, false, iiif.QualityDefault)
	if out != image.Image(src) {
		t.Fatal("expected untouched image when every stage is a no-op")
	}
}

func TestTransformScalesToTargetSize(t *testing.T) {
	out := Transform(asymmetric(), 8, 4, 0, false, iiif.QualityDefault)
	if b := out.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("expected 8x4 output, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestTransformRotatesClockwise(t *testing.T) {
	out := Transform(asymmetric(), 4, 2, 90, false, iiif.QualityDefault)
	b := out.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("expected 2x4 after 90 degree rotation, got %dx%d", b.Dx(), b.Dy())
	}
	// Clockwise 90 moves the top-left pixel to the top-right corner.
	r, _, _, _ := out.At(1, 0).RGBA()
	if r == 0 {
		t.Fatal("expected marker pixel at top-right after clockwise rotation")
	}
}

func TestTransformRotateThenMirrorOrdering(t *testing.T) {
	rotateThenMirror := Transform(asymmetric(), 4, 2, 90, true, iiif.QualityDefault)

	// The reverse order, mirror before rotate, must land the marker
	// elsewhere; the pipeline is defined as rotate-then-mirror.
	mirrorThenRotate := Transform(imaging.FlipH(asymmetric()), 4, 2, 90, false, iiif.QualityDefault)

	markerAt := func(img image.Image) (int, int) {
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if r, _, _, _ := img.At(x, y).RGBA(); r > 0 {
					return x, y
				}
			}
		}
		return -1, -1
	}

	x1, y1 := markerAt(rotateThenMirror)
	x2, y2 := markerAt(mirrorThenRotate)
	if x1 == x2 && y1 == y2 {
		t.Fatal("rotate-then-mirror must differ from mirror-then-rotate for an asymmetric image")
	}
	// Rotate CW 90 puts the marker top-right; the mirror brings it back to
	// the top-left of the rotated frame.
	if x1 != 0 || y1 != 0 {
		t.Fatalf("expected marker at (0,0), got (%d,%d)", x1, y1)
	}
}

func TestTransformQualityBands(t *testing.T) {
	src := asymmetric()

	if _, ok := Transform(src, 4, 2, 0, false, iiif.QualityGray).(*image.Gray); !ok {
		t.Fatal("gray quality must produce a single-channel buffer")
	}

	bitonal, ok := Transform(src, 4, 2, 0, false, iiif.QualityBitonal).(*image.Gray)
	if !ok {
		t.Fatal("bitonal quality must produce a thresholded gray buffer")
	}
	for i, px := range bitonal.Pix {
		if px != 0 && px != 255 {
			t.Fatalf("bitonal pixel %d has intermediate value %d", i, px)
		}
	}

	if _, ok := Transform(src, 4, 2, 0, false, iiif.QualityColor).(*image.NRGBA); !ok {
		t.Fatal("color quality must produce an NRGBA buffer")
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 2))
	if _, ok := Transform(gray, 4, 2, 0, false, iiif.QualityColor).(*image.NRGBA); !ok {
		t.Fatal("color quality must convert grayscale input to NRGBA")
	}
	if out := Transform(gray, 4, 2, 0, false, iiif.QualityDefault); out != image.Image(gray) {
		t.Fatal("default quality must preserve the decoder's native format")
	}
}
