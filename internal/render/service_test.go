package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/iiif"
)

type mapResolver map[string][]byte

func (m mapResolver) Resolve(_ context.Context, identifier string) ([]byte, error) {
	data, ok := m[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", iiif.ErrNotFound, identifier)
	}
	return data, nil
}

type denyPolicy struct{ denied string }

func (p denyPolicy) Allowed(_ context.Context, identifier string) (bool, error) {
	return identifier != p.denied, nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, policy AccessPolicy) *Service {
	t.Helper()
	resolver := mapResolver{"sample": encodePNG(t, 64, 48)}
	return NewService(resolver, codec.DefaultRegistry(), policy)
}

func mustSelector(t *testing.T, spec string) iiif.Selector {
	t.Helper()
	sel, err := iiif.ParseSelector(spec)
	if err != nil {
		t.Fatalf("parse selector %q: %v", spec, err)
	}
	return sel
}

func TestRenderFullImageRoundTrip(t *testing.T) {
	svc := newTestService(t, nil)

	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "full/max/0/default.png"), &out)
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("decode rendered output: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Fatalf("expected native 64x48 output, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderRegionAndSize(t *testing.T) {
	svc := newTestService(t, nil)

	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "8,8,32,16/16,8/0/default.png"), &out)
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("decode rendered output: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 8 {
		t.Fatalf("expected 16x8 output, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderRotationChangesOrientation(t *testing.T) {
	svc := newTestService(t, nil)

	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "full/max/90/default.png"), &out)
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("decode rendered output: %v", err)
	}
	if cfg.Width != 48 || cfg.Height != 64 {
		t.Fatalf("expected rotated 48x64 output, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderUnknownIdentifier(t *testing.T) {
	svc := newTestService(t, nil)
	var out bytes.Buffer
	err := svc.Render(context.Background(), "missing", mustSelector(t, "full/max/0/default.png"), &out)
	if !errors.Is(err, iiif.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output on failure, got %d bytes", out.Len())
	}
}

func TestRenderDeniedIdentifierLooksMissing(t *testing.T) {
	svc := newTestService(t, denyPolicy{denied: "sample"})
	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "full/max/0/default.png"), &out)
	if !errors.Is(err, iiif.ErrNotFound) {
		t.Fatalf("denial must surface as ErrNotFound, got %v", err)
	}
}

func TestRenderNon90RotationFailsBeforeDecode(t *testing.T) {
	svc := newTestService(t, nil)
	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "full/max/45/default.png"), &out)
	if !errors.Is(err, iiif.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output on failure, got %d bytes", out.Len())
	}
}

func TestRenderRegionOutsideBounds(t *testing.T) {
	svc := newTestService(t, nil)
	var out bytes.Buffer
	err := svc.Render(context.Background(), "sample", mustSelector(t, "500,500,10,10/max/0/default.png"), &out)
	if !errors.Is(err, iiif.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
}

func TestRenderUnsupportedSourceBytes(t *testing.T) {
	svc := NewService(mapResolver{"junk": []byte("definitely not an image")}, codec.DefaultRegistry(), nil)
	var out bytes.Buffer
	err := svc.Render(context.Background(), "junk", mustSelector(t, "full/max/0/default.png"), &out)
	if !errors.Is(err, iiif.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestInfoBuildsDescriptor(t *testing.T) {
	svc := newTestService(t, nil)
	info, err := svc.Info(context.Background(), "sample")
	if err != nil {
		t.Fatalf("info returned error: %v", err)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Fatalf("expected 64x48 descriptor, got %dx%d", info.Width, info.Height)
	}
	if info.Profile != iiif.ProfileLevel {
		t.Fatalf("expected profile %s, got %s", iiif.ProfileLevel, info.Profile)
	}
}
