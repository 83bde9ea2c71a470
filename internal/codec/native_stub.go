//go:build !govips || !cgo

package codec

// Startup is a no-op without the govips build tag.
func Startup() error {
	return nil
}

// Shutdown is a no-op without the govips build tag.
func Shutdown() {}

// Without libvips the pure-Go codecs are all there is; webp stays
// decode-only and requesting webp output fails with UnsupportedFormat.
func registerNativeCodecs(*Registry) {}
