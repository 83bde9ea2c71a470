package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

// flatDecoder serves the generic single-level formats: one resolution, no
// tiling, no decode-time rotation. The whole image is decoded and the
// requested region cropped out.
type flatDecoder struct {
	data   []byte
	cfg    image.Config
	format string
	decode func(io.Reader) (image.Image, error)
}

func openFlat(data []byte, format string,
	config func(io.Reader) (image.Config, error),
	decode func(io.Reader) (image.Image, error),
) (Decoder, error) {
	cfg, err := config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s header: %v", iiif.ErrInvalidParameters, format, err)
	}
	return &flatDecoder{data: data, cfg: cfg, format: format, decode: decode}, nil
}

func (d *flatDecoder) Levels() int            { return 1 }
func (d *flatDecoder) Width(int) int          { return d.cfg.Width }
func (d *flatDecoder) Height(int) int         { return d.cfg.Height }
func (d *flatDecoder) Tiled() bool            { return false }
func (d *flatDecoder) TileWidth(int) int      { return 0 }
func (d *flatDecoder) SupportsRotation() bool { return false }

func (d *flatDecoder) Decode(level int, region image.Rectangle, _ int) (image.Image, error) {
	if level != 0 {
		return nil, fmt.Errorf("%w: %s level %d does not exist", iiif.ErrInvalidParameters, d.format, level)
	}
	region, err := clampRegion(region, d.cfg.Width, d.cfg.Height)
	if err != nil {
		return nil, err
	}
	img, err := d.decode(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", iiif.ErrInvalidParameters, d.format, err)
	}
	return imaging.Crop(img, region), nil
}

func (d *flatDecoder) Close() error {
	d.data = nil
	return nil
}

type pngFactory struct{}

func (pngFactory) Accepts(data []byte) bool {
	return bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
}

func (pngFactory) Open(data []byte) (Decoder, error) {
	return openFlat(data, "png", png.DecodeConfig, png.Decode)
}

type gifFactory struct{}

func (gifFactory) Accepts(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

func (gifFactory) Open(data []byte) (Decoder, error) {
	return openFlat(data, "gif", gif.DecodeConfig, gif.Decode)
}

type bmpFactory struct{}

func (bmpFactory) Accepts(data []byte) bool {
	return bytes.HasPrefix(data, []byte("BM"))
}

func (bmpFactory) Open(data []byte) (Decoder, error) {
	return openFlat(data, "bmp", bmp.DecodeConfig, bmp.Decode)
}

type webpFactory struct{}

func (webpFactory) Accepts(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

func (webpFactory) Open(data []byte) (Decoder, error) {
	return openFlat(data, "webp", webp.DecodeConfig, webp.Decode)
}

type pngEncoder struct{}

func (pngEncoder) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type gifEncoder struct{}

func (gifEncoder) Encode(w io.Writer, img image.Image) error {
	if err := gif.Encode(w, img, nil); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

type bmpEncoder struct{}

func (bmpEncoder) Encode(w io.Writer, img image.Image) error {
	if err := bmp.Encode(w, img); err != nil {
		return fmt.Errorf("encode bmp: %w", err)
	}
	return nil
}
