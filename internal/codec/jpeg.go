package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegn"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

// jpegFactory opens JPEG streams with the jpegn decoder. JPEGs are the
// rotation-capable decoder family: the rotation hint is honored inside
// Decode, and block decoding makes 512/1024-edge tiles cheap, which the
// capability builder advertises as synthetic tiles.
type jpegFactory struct{}

func (jpegFactory) Accepts(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff
}

func (jpegFactory) Open(data []byte) (Decoder, error) {
	cfg, err := jpegn.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: read jpeg header: %v", iiif.ErrInvalidParameters, err)
	}
	return &jpegDecoder{data: data, cfg: cfg}, nil
}

type jpegDecoder struct {
	data []byte
	cfg  image.Config
}

func (d *jpegDecoder) Levels() int            { return 1 }
func (d *jpegDecoder) Width(int) int          { return d.cfg.Width }
func (d *jpegDecoder) Height(int) int         { return d.cfg.Height }
func (d *jpegDecoder) Tiled() bool            { return false }
func (d *jpegDecoder) TileWidth(int) int      { return 0 }
func (d *jpegDecoder) SupportsRotation() bool { return true }

func (d *jpegDecoder) Decode(level int, region image.Rectangle, rotation int) (image.Image, error) {
	if level != 0 {
		return nil, fmt.Errorf("%w: jpeg level %d does not exist", iiif.ErrInvalidParameters, level)
	}
	region, err := clampRegion(region, d.cfg.Width, d.cfg.Height)
	if err != nil {
		return nil, err
	}

	img, err := jpegn.Decode(bytes.NewReader(d.data), &jpegn.Options{UpsampleMethod: jpegn.CatmullRom})
	if err != nil {
		return nil, fmt.Errorf("%w: decode jpeg: %v", iiif.ErrInvalidParameters, err)
	}

	out := image.Image(imaging.Crop(img, region))
	if rotation != 0 {
		out = rotateClockwise(out, rotation)
	}
	return out, nil
}

func (d *jpegDecoder) Close() error {
	d.data = nil
	return nil
}

// rotateClockwise rotates by a multiple of 90 degrees. The imaging package
// rotates counter-clockwise, hence the swap of 90 and 270.
func rotateClockwise(img image.Image, degrees int) image.Image {
	switch degrees % 360 {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

type jpegEncoder struct{}

// Baseline quality for re-encoded JPEG output.
const jpegQuality = 90

func (jpegEncoder) Encode(w io.Writer, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
