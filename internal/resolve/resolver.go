// Package resolve maps image identifiers to source bytes. The render core
// never learns where bytes live; both backends report unknown identifiers
// as iiif.ErrNotFound.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zoomtile/zoomtile/internal/iiif"
	"github.com/zoomtile/zoomtile/internal/storage"
)

// Local resolves identifiers as paths below a root directory.
type Local struct {
	Root string
}

func (l Local) Resolve(_ context.Context, identifier string) ([]byte, error) {
	cleaned := filepath.Clean("/" + identifier)
	path := filepath.Join(l.Root, cleaned)
	if !strings.HasPrefix(path, filepath.Clean(l.Root)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("%w: %s", iiif.ErrNotFound, identifier)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", iiif.ErrNotFound, identifier)
		}
		return nil, fmt.Errorf("read source %s: %w", identifier, err)
	}
	return data, nil
}

// Object resolves identifiers as object keys under an optional prefix in
// the configured bucket.
type Object struct {
	Storage *storage.Client
	Prefix  string
}

func (o Object) Resolve(ctx context.Context, identifier string) ([]byte, error) {
	if o.Storage == nil {
		return nil, errors.New("storage client is required")
	}

	key := identifier
	if p := strings.Trim(o.Prefix, "/"); p != "" {
		key = p + "/" + identifier
	}

	data, err := o.Storage.ReadObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", iiif.ErrNotFound, identifier)
		}
		return nil, err
	}
	return data, nil
}
