package iiif

import "testing"

type fakeSource struct {
	widths     []int
	heights    []int
	tiled      bool
	tileWidths []int
	rotation   bool
}

func (f fakeSource) Levels() int             { return len(f.widths) }
func (f fakeSource) Width(level int) int     { return f.widths[level] }
func (f fakeSource) Height(level int) int    { return f.heights[level] }
func (f fakeSource) Tiled() bool             { return f.tiled }
func (f fakeSource) TileWidth(level int) int { return f.tileWidths[level] }
func (f fakeSource) SupportsRotation() bool  { return f.rotation }

func TestBuildInfoNativeTiling(t *testing.T) {
	info := BuildInfo(fakeSource{
		widths:     []int{4096, 2048, 1024},
		heights:    []int{3072, 1536, 768},
		tiled:      true,
		tileWidths: []int{1024, 512, 256},
	})

	if info.Width != 4096 || info.Height != 3072 {
		t.Fatalf("unexpected dimensions %dx%d", info.Width, info.Height)
	}
	if len(info.Sizes) != 3 {
		t.Fatalf("expected 3 sizes, got %d", len(info.Sizes))
	}
	if len(info.Tiles) != 1 {
		t.Fatalf("expected one tile entry, got %d", len(info.Tiles))
	}
	tile := info.Tiles[0]
	if tile.Width != 1024 {
		t.Fatalf("expected native tile width 1024, got %d", tile.Width)
	}
	want := []int{1, 2, 4}
	for i, f := range want {
		if tile.ScaleFactors[i] != f {
			t.Fatalf("expected scale factors %v, got %v", want, tile.ScaleFactors)
		}
	}
}

func TestBuildInfoStripOrganizedLowerLevels(t *testing.T) {
	// Pyramids often store their smallest levels as strips; those IFDs
	// report no tile width and the factor comes from the level widths.
	info := BuildInfo(fakeSource{
		widths:     []int{4096, 2048, 1024},
		heights:    []int{3072, 1536, 768},
		tiled:      true,
		tileWidths: []int{512, 0, 0},
	})

	if len(info.Tiles) != 1 {
		t.Fatalf("expected one tile entry, got %d", len(info.Tiles))
	}
	tile := info.Tiles[0]
	if tile.Width != 512 {
		t.Fatalf("expected native tile width 512, got %d", tile.Width)
	}
	want := []int{1, 2, 4}
	if len(tile.ScaleFactors) != len(want) {
		t.Fatalf("expected scale factors %v, got %v", want, tile.ScaleFactors)
	}
	for i, f := range want {
		if tile.ScaleFactors[i] != f {
			t.Fatalf("expected scale factors %v, got %v", want, tile.ScaleFactors)
		}
	}
}

func TestBuildInfoSyntheticTilesGatedOnDimensions(t *testing.T) {
	// 600x600 rotation-capable image: large enough for the 512 tile only.
	info := BuildInfo(fakeSource{
		widths:   []int{600},
		heights:  []int{600},
		rotation: true,
	})

	if len(info.Tiles) != 1 {
		t.Fatalf("expected exactly one synthetic tile, got %d", len(info.Tiles))
	}
	if info.Tiles[0].Width != 512 {
		t.Fatalf("expected 512 tile edge, got %d", info.Tiles[0].Width)
	}
	want := []int{1, 2, 4, 8, 16}
	if len(info.Tiles[0].ScaleFactors) != len(want) {
		t.Fatalf("expected scale factors %v, got %v", want, info.Tiles[0].ScaleFactors)
	}
	for i, f := range want {
		if info.Tiles[0].ScaleFactors[i] != f {
			t.Fatalf("expected scale factors %v, got %v", want, info.Tiles[0].ScaleFactors)
		}
	}
	if len(info.Sizes) != 0 {
		t.Fatalf("single-level image should not advertise sizes, got %v", info.Sizes)
	}
}

func TestBuildInfoGenericDecoderAdvertisesNoTiles(t *testing.T) {
	info := BuildInfo(fakeSource{widths: []int{2048}, heights: []int{2048}})
	if len(info.Tiles) != 0 {
		t.Fatalf("expected no tiles for a generic decoder, got %v", info.Tiles)
	}
	if info.Profile != ProfileLevel {
		t.Fatalf("expected profile %s, got %s", ProfileLevel, info.Profile)
	}
}
