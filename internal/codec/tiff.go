package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"github.com/zoomtile/zoomtile/internal/iiif"
)

// tiffFactory opens classic (non-Big) TIFF streams, including pyramid TIFFs
// whose reduced-resolution levels live in subsequent IFDs. x/image/tiff only
// decodes the first image directory, so level geometry comes from a light
// IFD walk and a sub-image is decoded by re-pointing the header at its IFD.
type tiffFactory struct{}

func (tiffFactory) Accepts(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	little := data[0] == 'I' && data[1] == 'I' && data[2] == 42 && data[3] == 0
	big := data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 42
	return little || big
}

func (tiffFactory) Open(data []byte) (Decoder, error) {
	levels, order, err := parseTIFFLevels(data)
	if err != nil {
		return nil, fmt.Errorf("%w: read tiff structure: %v", iiif.ErrInvalidParameters, err)
	}
	return &tiffDecoder{data: data, order: order, levels: levels}, nil
}

type tiffLevel struct {
	width     int
	height    int
	tileWidth int
	offset    uint32
}

type tiffDecoder struct {
	data   []byte
	order  binary.ByteOrder
	levels []tiffLevel
}

func (d *tiffDecoder) Levels() int             { return len(d.levels) }
func (d *tiffDecoder) Width(level int) int     { return d.levels[level].width }
func (d *tiffDecoder) Height(level int) int    { return d.levels[level].height }
func (d *tiffDecoder) Tiled() bool             { return d.levels[0].tileWidth > 0 }
func (d *tiffDecoder) TileWidth(level int) int { return d.levels[level].tileWidth }
func (d *tiffDecoder) SupportsRotation() bool  { return false }

func (d *tiffDecoder) Decode(level int, region image.Rectangle, _ int) (image.Image, error) {
	if level < 0 || level >= len(d.levels) {
		return nil, fmt.Errorf("%w: tiff level %d does not exist", iiif.ErrInvalidParameters, level)
	}
	lvl := d.levels[level]
	region, err := clampRegion(region, lvl.width, lvl.height)
	if err != nil {
		return nil, err
	}

	src := d.data
	if level > 0 {
		// x/image/tiff always reads the directory the header points at, so
		// decode a copy whose first-IFD offset is the chosen level's IFD.
		src = bytes.Clone(d.data)
		d.order.PutUint32(src[4:8], lvl.offset)
	}

	img, err := tiff.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode tiff level %d: %v", iiif.ErrInvalidParameters, level, err)
	}
	return imaging.Crop(img, region), nil
}

func (d *tiffDecoder) Close() error {
	d.data = nil
	return nil
}

// TIFF tags consulted during the IFD walk.
const (
	tagImageWidth  = 256
	tagImageLength = 257
	tagTileWidth   = 322
)

const maxIFDCount = 32

func parseTIFFLevels(data []byte) ([]tiffLevel, binary.ByteOrder, error) {
	var order binary.ByteOrder
	switch {
	case data[0] == 'I':
		order = binary.LittleEndian
	default:
		order = binary.BigEndian
	}

	offset := order.Uint32(data[4:8])
	var levels []tiffLevel
	for offset != 0 && len(levels) < maxIFDCount {
		if int(offset)+2 > len(data) {
			return nil, nil, fmt.Errorf("ifd offset %d beyond stream", offset)
		}
		entries := int(order.Uint16(data[offset : offset+2]))
		base := int(offset) + 2
		if base+entries*12+4 > len(data) {
			return nil, nil, fmt.Errorf("truncated ifd at offset %d", offset)
		}

		lvl := tiffLevel{offset: offset}
		for i := 0; i < entries; i++ {
			entry := data[base+i*12 : base+(i+1)*12]
			tag := order.Uint16(entry[0:2])
			if tag != tagImageWidth && tag != tagImageLength && tag != tagTileWidth {
				continue
			}
			value, err := ifdValue(order, entry)
			if err != nil {
				return nil, nil, err
			}
			switch tag {
			case tagImageWidth:
				lvl.width = value
			case tagImageLength:
				lvl.height = value
			case tagTileWidth:
				lvl.tileWidth = value
			}
		}
		if lvl.width <= 0 || lvl.height <= 0 {
			return nil, nil, fmt.Errorf("ifd at offset %d has no dimensions", offset)
		}
		levels = append(levels, lvl)
		offset = order.Uint32(data[base+entries*12 : base+entries*12+4])
	}

	if len(levels) == 0 {
		return nil, nil, fmt.Errorf("no image directories")
	}
	return levels, order, nil
}

func ifdValue(order binary.ByteOrder, entry []byte) (int, error) {
	const (
		typeShort = 3
		typeLong  = 4
	)
	switch order.Uint16(entry[2:4]) {
	case typeShort:
		return int(order.Uint16(entry[8:10])), nil
	case typeLong:
		return int(order.Uint32(entry[8:12])), nil
	default:
		return 0, fmt.Errorf("unexpected ifd entry type %d for tag %d", order.Uint16(entry[2:4]), order.Uint16(entry[0:2]))
	}
}

type tiffEncoder struct{}

func (tiffEncoder) Encode(w io.Writer, img image.Image) error {
	if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode tiff: %w", err)
	}
	return nil
}
