// Package iiif implements the request and capability model of the IIIF
// Image API 2.x: selector parsing, region/size geometry, and info.json
// capability descriptors.
package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionKind enumerates the region request variants.
type RegionKind int

const (
	RegionFull RegionKind = iota
	RegionSquare
	RegionPixel
	RegionPercent
)

// Region is the parsed region component of a selector. X/Y/W/H are only
// meaningful for RegionPixel (native pixels) and RegionPercent (0-100).
type Region struct {
	Kind RegionKind
	X    float64
	Y    float64
	W    float64
	H    float64
}

// SizeKind enumerates the size request variants.
type SizeKind int

const (
	SizeMax SizeKind = iota
	SizeWidth
	SizeHeight
	SizeExact
	SizePercent
	SizeBestFit
)

// Size is the parsed size component of a selector.
type Size struct {
	Kind    SizeKind
	W       int
	H       int
	Percent float64
}

// Quality is the requested output color band.
type Quality string

const (
	QualityDefault Quality = "default"
	QualityColor   Quality = "color"
	QualityGray    Quality = "gray"
	QualityBitonal Quality = "bitonal"
)

// Selector is a fully parsed client request. It is resolution independent:
// all coordinates refer to the native image, never to a decode level.
// Immutable once parsed.
type Selector struct {
	Region   Region
	Size     Size
	Rotation float64
	Mirror   bool
	Quality  Quality
	Format   string
}

// ParseSelector parses the request path form
// {region}/{size}/{rotation}/{quality}.{format}, e.g.
// "full/max/0/default.jpg" or "pct:10,10,80,80/!200,200/!90/gray.png".
func ParseSelector(spec string) (Selector, error) {
	parts := strings.Split(strings.Trim(spec, "/"), "/")
	if len(parts) != 4 {
		return Selector{}, fmt.Errorf("%w: selector %q must have four segments", ErrInvalidParameters, spec)
	}

	var (
		sel Selector
		err error
	)
	if sel.Region, err = parseRegion(parts[0]); err != nil {
		return Selector{}, err
	}
	if sel.Size, err = parseSize(parts[1]); err != nil {
		return Selector{}, err
	}
	if sel.Rotation, sel.Mirror, err = parseRotation(parts[2]); err != nil {
		return Selector{}, err
	}
	if sel.Quality, sel.Format, err = parseQualityFormat(parts[3]); err != nil {
		return Selector{}, err
	}
	return sel, nil
}

func parseRegion(s string) (Region, error) {
	switch {
	case s == "full":
		return Region{Kind: RegionFull}, nil
	case s == "square":
		return Region{Kind: RegionSquare}, nil
	case strings.HasPrefix(s, "pct:"):
		vals, err := parseFloats(strings.TrimPrefix(s, "pct:"), 4)
		if err != nil {
			return Region{}, fmt.Errorf("%w: region %q", ErrInvalidParameters, s)
		}
		return Region{Kind: RegionPercent, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	default:
		vals, err := parseFloats(s, 4)
		if err != nil {
			return Region{}, fmt.Errorf("%w: region %q", ErrInvalidParameters, s)
		}
		return Region{Kind: RegionPixel, X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	}
}

func parseSize(s string) (Size, error) {
	switch {
	case s == "max" || s == "full":
		return Size{Kind: SizeMax}, nil
	case strings.HasPrefix(s, "pct:"):
		pct, err := strconv.ParseFloat(strings.TrimPrefix(s, "pct:"), 64)
		if err != nil || pct <= 0 {
			return Size{}, fmt.Errorf("%w: size %q", ErrInvalidParameters, s)
		}
		return Size{Kind: SizePercent, Percent: pct}, nil
	}

	bestFit := strings.HasPrefix(s, "!")
	dims := strings.Split(strings.TrimPrefix(s, "!"), ",")
	if len(dims) != 2 {
		return Size{}, fmt.Errorf("%w: size %q", ErrInvalidParameters, s)
	}

	w, h := -1, -1
	var err error
	if dims[0] != "" {
		if w, err = strconv.Atoi(dims[0]); err != nil || w <= 0 {
			return Size{}, fmt.Errorf("%w: size %q", ErrInvalidParameters, s)
		}
	}
	if dims[1] != "" {
		if h, err = strconv.Atoi(dims[1]); err != nil || h <= 0 {
			return Size{}, fmt.Errorf("%w: size %q", ErrInvalidParameters, s)
		}
	}

	switch {
	case bestFit && w > 0 && h > 0:
		return Size{Kind: SizeBestFit, W: w, H: h}, nil
	case w > 0 && h > 0:
		return Size{Kind: SizeExact, W: w, H: h}, nil
	case w > 0:
		return Size{Kind: SizeWidth, W: w}, nil
	case h > 0:
		return Size{Kind: SizeHeight, H: h}, nil
	default:
		return Size{}, fmt.Errorf("%w: size %q", ErrInvalidParameters, s)
	}
}

func parseRotation(s string) (float64, bool, error) {
	mirror := strings.HasPrefix(s, "!")
	deg, err := strconv.ParseFloat(strings.TrimPrefix(s, "!"), 64)
	if err != nil || deg < 0 || deg > 360 {
		return 0, false, fmt.Errorf("%w: rotation %q", ErrInvalidParameters, s)
	}
	// A full turn is a valid request for the identity rotation.
	if deg == 360 {
		deg = 0
	}
	return deg, mirror, nil
}

func parseQualityFormat(s string) (Quality, string, error) {
	dot := strings.LastIndex(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return "", "", fmt.Errorf("%w: quality/format %q", ErrInvalidParameters, s)
	}

	quality := Quality(s[:dot])
	switch quality {
	case QualityDefault, QualityColor, QualityGray, QualityBitonal:
	default:
		return "", "", fmt.Errorf("%w: quality %q", ErrInvalidParameters, s[:dot])
	}
	return quality, strings.ToLower(s[dot+1:]), nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	vals := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// String renders the selector back to its request path form.
func (s Selector) String() string {
	var b strings.Builder
	switch s.Region.Kind {
	case RegionFull:
		b.WriteString("full")
	case RegionSquare:
		b.WriteString("square")
	case RegionPercent:
		fmt.Fprintf(&b, "pct:%g,%g,%g,%g", s.Region.X, s.Region.Y, s.Region.W, s.Region.H)
	case RegionPixel:
		fmt.Fprintf(&b, "%g,%g,%g,%g", s.Region.X, s.Region.Y, s.Region.W, s.Region.H)
	}
	b.WriteString("/")
	switch s.Size.Kind {
	case SizeMax:
		b.WriteString("max")
	case SizeWidth:
		fmt.Fprintf(&b, "%d,", s.Size.W)
	case SizeHeight:
		fmt.Fprintf(&b, ",%d", s.Size.H)
	case SizeExact:
		fmt.Fprintf(&b, "%d,%d", s.Size.W, s.Size.H)
	case SizeBestFit:
		fmt.Fprintf(&b, "!%d,%d", s.Size.W, s.Size.H)
	case SizePercent:
		fmt.Fprintf(&b, "pct:%g", s.Size.Percent)
	}
	b.WriteString("/")
	if s.Mirror {
		b.WriteString("!")
	}
	fmt.Fprintf(&b, "%g/%s.%s", s.Rotation, s.Quality, s.Format)
	return b.String()
}
