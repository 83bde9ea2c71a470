//go:build govips && cgo

package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initializes the libvips runtime. Safe to call more than once.
func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

// Shutdown tears down the libvips runtime if Startup ran.
func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// registerNativeCodecs adds the libvips-backed codecs. The factory is
// registered after the pure-Go ones, so vips only handles formats they do
// not (HEIF, AVIF, JPEG 2000, ...); the webp encoder fills the gap the
// pure-Go registry leaves open.
func registerNativeCodecs(r *Registry) {
	r.RegisterDecoder(vipsFactory{})
	r.RegisterEncoder(vipsWebpEncoder{}, "webp")
}

type vipsFactory struct{}

func (vipsFactory) Accepts(data []byte) bool {
	return vips.DetermineImageType(data) != vips.ImageTypeUnknown
}

func (vipsFactory) Open(data []byte) (Decoder, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: open with libvips: %v", iiif.ErrInvalidParameters, err)
	}
	return &vipsDecoder{data: data, img: img}, nil
}

type vipsDecoder struct {
	data []byte
	img  *vips.ImageRef
}

func (d *vipsDecoder) Levels() int            { return 1 }
func (d *vipsDecoder) Width(int) int          { return d.img.Width() }
func (d *vipsDecoder) Height(int) int         { return d.img.Height() }
func (d *vipsDecoder) Tiled() bool            { return false }
func (d *vipsDecoder) TileWidth(int) int      { return 0 }
func (d *vipsDecoder) SupportsRotation() bool { return true }

func (d *vipsDecoder) Decode(level int, region image.Rectangle, rotation int) (image.Image, error) {
	if level != 0 {
		return nil, fmt.Errorf("%w: level %d does not exist", iiif.ErrInvalidParameters, level)
	}
	region, err := clampRegion(region, d.img.Width(), d.img.Height())
	if err != nil {
		return nil, err
	}

	if err := d.img.ExtractArea(region.Min.X, region.Min.Y, region.Dx(), region.Dy()); err != nil {
		return nil, fmt.Errorf("%w: extract area: %v", iiif.ErrInvalidParameters, err)
	}
	if rotation != 0 {
		if err := d.img.Rotate(vipsAngle(rotation)); err != nil {
			return nil, fmt.Errorf("rotate during decode: %w", err)
		}
	}

	out, err := d.img.ToImage(vips.NewDefaultExportParams())
	if err != nil {
		return nil, fmt.Errorf("materialize pixels: %w", err)
	}
	return out, nil
}

func (d *vipsDecoder) Close() error {
	d.img.Close()
	d.data = nil
	return nil
}

func vipsAngle(degrees int) vips.Angle {
	switch degrees % 360 {
	case 90:
		return vips.Angle90
	case 180:
		return vips.Angle180
	case 270:
		return vips.Angle270
	default:
		return vips.Angle0
	}
}

type vipsWebpEncoder struct{}

func (vipsWebpEncoder) Encode(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("stage pixels for webp export: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return fmt.Errorf("import pixels for webp export: %w", err)
	}
	defer ref.Close()

	data, _, err := ref.ExportWebp(vips.NewWebpExportParams())
	if err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	_, err = w.Write(data)
	return err
}
