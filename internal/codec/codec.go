// Package codec is the gateway between the render pipeline and the
// underlying image libraries. It probes source bytes for a willing decoder,
// looks up encoders by output-format token, and hides per-format quirks
// (resolution pyramids, tiling, decode-time rotation) behind the Decoder
// interface.
package codec

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

// Decoder is an opened source image. One instance serves exactly one
// request and is never shared; Close releases whatever the implementation
// holds.
//
// Level 0 is always full native resolution and levels are non-increasing in
// size. Decode takes a region in the coordinate space of the requested
// level. The rotation hint is only ever non-zero for decoders that report
// SupportsRotation; such decoders emit already-rotated pixels.
type Decoder interface {
	Levels() int
	Width(level int) int
	Height(level int) int
	Tiled() bool
	TileWidth(level int) int
	SupportsRotation() bool
	Decode(level int, region image.Rectangle, rotation int) (image.Image, error)
	Close() error
}

// DecoderFactory probes raw bytes and opens a Decoder for streams it
// recognizes.
type DecoderFactory interface {
	Accepts(data []byte) bool
	Open(data []byte) (Decoder, error)
}

// Encoder serializes a final pixel buffer into one container format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// Registry holds the registered decoder factories and encoders. It is
// populated once at startup and read-only afterwards, so it needs no
// locking.
type Registry struct {
	decoders []DecoderFactory
	encoders map[string]Encoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{encoders: make(map[string]Encoder)}
}

// DefaultRegistry returns a registry with every built-in codec registered.
// Probe order matters only for ambiguous streams; specific formats first.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterDecoder(jpegFactory{})
	r.RegisterDecoder(tiffFactory{})
	r.RegisterDecoder(pngFactory{})
	r.RegisterDecoder(gifFactory{})
	r.RegisterDecoder(bmpFactory{})
	r.RegisterDecoder(webpFactory{})

	r.RegisterEncoder(jpegEncoder{}, "jpg", "jpeg")
	r.RegisterEncoder(pngEncoder{}, "png")
	r.RegisterEncoder(tiffEncoder{}, "tif", "tiff")
	r.RegisterEncoder(gifEncoder{}, "gif")
	r.RegisterEncoder(bmpEncoder{}, "bmp")
	registerNativeCodecs(r)
	return r
}

// RegisterDecoder appends a decoder factory to the probe chain.
func (r *Registry) RegisterDecoder(f DecoderFactory) {
	r.decoders = append(r.decoders, f)
}

// RegisterEncoder registers an encoder under one or more format tokens.
func (r *Registry) RegisterEncoder(e Encoder, formats ...string) {
	for _, f := range formats {
		r.encoders[strings.ToLower(f)] = e
	}
}

// OpenDecoder probes the registered factories against the stream content;
// the first factory willing to accept it wins.
func (r *Registry) OpenDecoder(data []byte) (Decoder, error) {
	for _, f := range r.decoders {
		if f.Accepts(data) {
			return f.Open(data)
		}
	}
	return nil, fmt.Errorf("%w: no decoder accepts source bytes", iiif.ErrUnsupportedFormat)
}

// EncoderFor looks up an encoder by output-format token.
func (r *Registry) EncoderFor(format string) (Encoder, error) {
	enc, ok := r.encoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for format %q", iiif.ErrUnsupportedFormat, format)
	}
	return enc, nil
}

// clampRegion intersects a decode region with the level bounds. Ceil-rounded
// region projection may overshoot the level edge by a pixel, so clamping is
// part of the decode contract; only an empty intersection is an error.
func clampRegion(region image.Rectangle, levelW, levelH int) (image.Rectangle, error) {
	clamped := region.Intersect(image.Rect(0, 0, levelW, levelH))
	if clamped.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: decode region %v outside level bounds %dx%d",
			iiif.ErrInvalidParameters, region, levelW, levelH)
	}
	return clamped, nil
}
