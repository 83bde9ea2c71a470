package iiif

// Profile features advertised for every image. The set is static: it
// describes what the transform pipeline implements, not anything derived
// from an individual image.
var ProfileFeatures = []string{
	"baseUriRedirect",
	"cors",
	"jsonldMediaType",
	"mirroring",
	"profileLinkHeader",
	"regionByPct",
	"regionByPx",
	"regionSquare",
	"rotationBy90s",
	"sizeByConfinedWh",
	"sizeByH",
	"sizeByPct",
	"sizeByW",
	"sizeByWh",
}

// ProfileLevel is the compliance level URI included in every descriptor.
const ProfileLevel = "http://iiif.io/api/image/2/level2.json"

// Synthetic tile advertisement for untiled images whose decoder family has
// cheap fractional scaling (JPEG block decoding works on multiples of the
// MCU size, so 512/1024-edge tiles stay MCU aligned). The scale factors are
// a fixed practical set, not derived from the image.
var syntheticTileEdges = [...]int{512, 1024}
var syntheticScaleFactors = []int{1, 2, 4, 8, 16}

// SizeEntry is one discrete pre-available resolution.
type SizeEntry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TileEntry advertises a tile edge length and the scale factors at which
// tiles of that edge can be requested.
type TileEntry struct {
	Width        int   `json:"width"`
	ScaleFactors []int `json:"scaleFactors"`
}

// ImageInfo is the capability descriptor for one image. Serialization to
// info.json is up to the caller.
type ImageInfo struct {
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Sizes    []SizeEntry `json:"sizes,omitempty"`
	Tiles    []TileEntry `json:"tiles,omitempty"`
	Profile  string      `json:"profile"`
	Features []string    `json:"-"`
}

// ImageSource is the view of an opened decoder that the descriptor builder
// needs. Satisfied by codec.Decoder.
type ImageSource interface {
	Levels() int
	Width(level int) int
	Height(level int) int
	Tiled() bool
	TileWidth(level int) int
	SupportsRotation() bool
}

// BuildInfo derives the capability descriptor from an opened decoder.
func BuildInfo(src ImageSource) *ImageInfo {
	info := &ImageInfo{
		Width:    src.Width(0),
		Height:   src.Height(0),
		Profile:  ProfileLevel,
		Features: ProfileFeatures,
	}

	levels := src.Levels()
	if levels > 1 {
		for i := 0; i < levels; i++ {
			info.Sizes = append(info.Sizes, SizeEntry{Width: src.Width(i), Height: src.Height(i)})
		}
	}

	switch {
	case src.Tiled():
		tile := TileEntry{Width: src.TileWidth(0)}
		for i := 0; i < levels; i++ {
			// Lower pyramid levels are often strip organized and report no
			// tile width; the level width ratio gives the same factor.
			if tw := src.TileWidth(i); tw > 0 {
				tile.ScaleFactors = append(tile.ScaleFactors, src.TileWidth(0)/tw)
			} else {
				tile.ScaleFactors = append(tile.ScaleFactors, src.Width(0)/src.Width(i))
			}
		}
		info.Tiles = append(info.Tiles, tile)
	case src.SupportsRotation():
		for _, edge := range syntheticTileEdges {
			if info.Width >= edge && info.Height >= edge {
				info.Tiles = append(info.Tiles, TileEntry{Width: edge, ScaleFactors: syntheticScaleFactors})
			}
		}
	}

	return info
}
