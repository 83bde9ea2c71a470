package iiif

import "errors"

// Request failures are classified into four terminal kinds so callers can
// distinguish a client error from a capability mismatch. None are retried.
var (
	// ErrNotFound covers both unresolvable identifiers and denied access;
	// the two are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("image not found")

	// ErrUnsupportedFormat means no decoder accepts the source bytes, or no
	// encoder exists for the requested output format.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidParameters means the request resolved to an empty region or
	// the codec rejected the computed decode parameters.
	ErrInvalidParameters = errors.New("invalid request parameters")

	// ErrUnsupportedOperation means the request asks for something the
	// pipeline cannot do at all, such as a non-90-degree rotation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
