package render

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

const bitonalThreshold = 128

// Transform applies the post-decode stages in fixed order: scale, rotate,
// mirror, quality conversion. Each stage is skipped when it would be a
// no-op. Mirroring happens after rotation; swapping the two produces wrong
// output for 90-degree-rotated mirrored requests.
func Transform(img image.Image, targetW, targetH, rotation int, mirror bool, quality iiif.Quality) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() != targetW || bounds.Dy() != targetH {
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	switch rotation {
	case 90:
		// imaging rotates counter-clockwise, requests are clockwise.
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if mirror {
		img = imaging.FlipH(img)
	}

	return convertQuality(img, quality)
}

// convertQuality maps the buffer to the requested color band. Alpha is kept
// for default and color output (NRGBA carries it through); gray and bitonal
// conversion collapses to luminance and drops it.
func convertQuality(img image.Image, quality iiif.Quality) image.Image {
	switch quality {
	case iiif.QualityColor:
		if _, ok := img.(*image.NRGBA); ok {
			return img
		}
		return imaging.Clone(img)
	case iiif.QualityGray:
		if _, ok := img.(*image.Gray); ok {
			return img
		}
		return toGray(img)
	case iiif.QualityBitonal:
		return segment.Threshold(img, bitonalThreshold)
	default:
		return img
	}
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}
