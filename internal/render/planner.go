// Package render turns a resolved image request into pixels: it plans the
// cheapest decode, runs the post-decode transform stages, and encodes the
// result. Everything here is request-scoped; nothing is shared between
// concurrent renders.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/iiif"
)

// Plan is the decode strategy for one request: which level to decode, the
// target region projected into that level's coordinates, and how rotation
// is split between the decoder and the transform stages.
type Plan struct {
	Level        int
	DecodeRegion image.Rectangle
	ScaleFactor  float64

	// Output size after decoding. Already swapped when the decoder itself
	// performs a 90/270 rotation, since it emits rotated pixels.
	TargetWidth  int
	TargetHeight int

	// DecoderRotation is handed to Decode; ResidualRotation is what the
	// transform pipeline still has to apply. Exactly one of them carries
	// the requested rotation.
	DecoderRotation  int
	ResidualRotation int
}

// PlanDecode picks the decode level whose scale factor is nearest the
// requested one and projects the target region into its coordinate space.
// The nearest match may have less resolution than requested; the transform
// pipeline upsamples in that case. Rotation must be a multiple of 90
// degrees and is rejected before any decode work happens.
func PlanDecode(dec codec.Decoder, geom iiif.Geometry, sel iiif.Selector) (Plan, error) {
	if math.Mod(sel.Rotation, 90) != 0 {
		return Plan{}, fmt.Errorf("%w: can only rotate by multiples of 90 degrees, got %g", iiif.ErrUnsupportedOperation, sel.Rotation)
	}
	rotation := int(sel.Rotation) % 360

	targetScale := float64(geom.Width) / float64(geom.Region.Dx())
	nativeW := float64(dec.Width(0))

	// Nearest-match scan; the initial best of 1.0 means level 0 wins ties
	// against equally distant coarser levels.
	level, scale := 0, 1.0
	for i := 0; i < dec.Levels(); i++ {
		factor := float64(dec.Width(i)) / nativeW
		if math.Abs(targetScale-factor) < math.Abs(targetScale-scale) {
			level, scale = i, factor
		}
	}

	// Each coordinate is ceiling-rounded independently; the decode rect may
	// overshoot an exact projection by a pixel per edge, which beats
	// clipping content. Decoders clamp to level bounds.
	r := geom.Region
	plan := Plan{
		Level: level,
		DecodeRegion: image.Rect(
			ceilScale(r.Min.X, scale),
			ceilScale(r.Min.Y, scale),
			ceilScale(r.Min.X, scale)+ceilScale(r.Dx(), scale),
			ceilScale(r.Min.Y, scale)+ceilScale(r.Dy(), scale),
		),
		ScaleFactor:  scale,
		TargetWidth:  geom.Width,
		TargetHeight: geom.Height,
	}

	if rotation != 0 && dec.SupportsRotation() {
		plan.DecoderRotation = rotation
		if rotation == 90 || rotation == 270 {
			plan.TargetWidth, plan.TargetHeight = plan.TargetHeight, plan.TargetWidth
		}
	} else {
		plan.ResidualRotation = rotation
	}
	return plan, nil
}

func ceilScale(v int, scale float64) int {
	return int(math.Ceil(float64(v) * scale))
}
