package iiif

import (
	"fmt"
	"image"
	"math"
)

// Geometry is a selector resolved against a concrete native image: the
// absolute pixel region to extract and the absolute output dimensions after
// scaling. It is independent of any decode level.
type Geometry struct {
	Region image.Rectangle
	Width  int
	Height int
}

// Resolve computes the target geometry for a selector against native
// dimensions. Regions partially outside the image are clamped rather than
// rejected; only a request with no positive overlap fails. Deterministic:
// identical inputs always produce identical output.
func Resolve(nativeW, nativeH int, sel Selector) (Geometry, error) {
	region, err := resolveRegion(nativeW, nativeH, sel.Region)
	if err != nil {
		return Geometry{}, err
	}

	w, h := resolveSize(region.Dx(), region.Dy(), sel.Size)
	return Geometry{Region: region, Width: w, Height: h}, nil
}

func resolveRegion(nativeW, nativeH int, r Region) (image.Rectangle, error) {
	bounds := image.Rect(0, 0, nativeW, nativeH)

	var req image.Rectangle
	switch r.Kind {
	case RegionFull:
		return bounds, nil
	case RegionSquare:
		edge := nativeW
		if nativeH < edge {
			edge = nativeH
		}
		x := (nativeW - edge) / 2
		y := (nativeH - edge) / 2
		return image.Rect(x, y, x+edge, y+edge), nil
	case RegionPercent:
		x := roundInt(float64(nativeW) * r.X / 100)
		y := roundInt(float64(nativeH) * r.Y / 100)
		w := roundInt(float64(nativeW) * r.W / 100)
		h := roundInt(float64(nativeH) * r.H / 100)
		req = image.Rect(x, y, x+w, y+h)
	default:
		x := roundInt(r.X)
		y := roundInt(r.Y)
		req = image.Rect(x, y, x+roundInt(r.W), y+roundInt(r.H))
	}

	clamped := req.Intersect(bounds)
	if clamped.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: region %v outside image %dx%d", ErrInvalidParameters, req, nativeW, nativeH)
	}
	return clamped, nil
}

// resolveSize operates on the cropped dimensions, not the native ones.
func resolveSize(croppedW, croppedH int, s Size) (int, int) {
	switch s.Kind {
	case SizeWidth:
		return s.W, scaleDim(croppedH, float64(s.W)/float64(croppedW))
	case SizeHeight:
		return scaleDim(croppedW, float64(s.H)/float64(croppedH)), s.H
	case SizeExact:
		return s.W, s.H
	case SizePercent:
		return scaleDim(croppedW, s.Percent/100), scaleDim(croppedH, s.Percent/100)
	case SizeBestFit:
		scale := math.Min(float64(s.W)/float64(croppedW), float64(s.H)/float64(croppedH))
		return scaleDim(croppedW, scale), scaleDim(croppedH, scale)
	default:
		return croppedW, croppedH
	}
}

func scaleDim(dim int, scale float64) int {
	scaled := roundInt(float64(dim) * scale)
	if scaled < 1 {
		return 1
	}
	return scaled
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
