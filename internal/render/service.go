package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/zoomtile/zoomtile/internal/codec"
	"github.com/zoomtile/zoomtile/internal/iiif"
)

// Resolver turns an identifier into source bytes. Implementations report
// iiif.ErrNotFound for unknown identifiers and never assume anything about
// where bytes live.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) ([]byte, error)
}

// AccessPolicy optionally gates identifiers. A nil policy allows
// everything; denial is reported exactly like a missing resource so callers
// cannot probe for existence.
type AccessPolicy interface {
	Allowed(ctx context.Context, identifier string) (bool, error)
}

// Service renders image regions on demand. Safe for concurrent use; every
// request gets its own decoder and buffers.
type Service struct {
	resolver Resolver
	codecs   *codec.Registry
	policy   AccessPolicy
}

// NewService wires a render service. policy may be nil.
func NewService(resolver Resolver, codecs *codec.Registry, policy AccessPolicy) *Service {
	return &Service{resolver: resolver, codecs: codecs, policy: policy}
}

// Info opens the identified image and builds its capability descriptor.
func (s *Service) Info(ctx context.Context, identifier string) (*iiif.ImageInfo, error) {
	dec, err := s.open(ctx, identifier)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return iiif.BuildInfo(dec), nil
}

// Render produces the selected region/size/rotation of the identified image
// and writes the encoded result to w in a single write. On any error
// nothing at all is written.
func (s *Service) Render(ctx context.Context, identifier string, sel iiif.Selector, w io.Writer) error {
	dec, err := s.open(ctx, identifier)
	if err != nil {
		return err
	}
	defer dec.Close()

	geom, err := iiif.Resolve(dec.Width(0), dec.Height(0), sel)
	if err != nil {
		return err
	}

	plan, err := PlanDecode(dec, geom, sel)
	if err != nil {
		return err
	}

	// Look the encoder up before decoding so a request for an output format
	// we cannot produce fails without paying for the decode.
	enc, err := s.codecs.EncoderFor(sel.Format)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	img, err := dec.Decode(plan.Level, plan.DecodeRegion, plan.DecoderRotation)
	if err != nil {
		return err
	}

	out := Transform(img, plan.TargetWidth, plan.TargetHeight, plan.ResidualRotation, sel.Mirror, sel.Quality)

	var buf bytes.Buffer
	if err := enc.Encode(&buf, out); err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write rendered output: %w", err)
	}
	return nil
}

func (s *Service) open(ctx context.Context, identifier string) (codec.Decoder, error) {
	if s.policy != nil {
		allowed, err := s.policy.Allowed(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("access policy check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", iiif.ErrNotFound, identifier)
		}
	}

	data, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.codecs.OpenDecoder(data)
}
