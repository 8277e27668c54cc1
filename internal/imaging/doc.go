// Package imaging provides the pixel-level building blocks the hotbar
// detector is written against.
//
// It wraps decoded screenshots in a PixelSource, decodes uploads under a
// timeout, caches icon templates, and offers the small set of image
// operations the detection core needs: cropping and Lanczos resizing,
// luminance statistics, Sobel edge density, hex colour parsing and overlay
// rendering for debugging.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left), Max is exclusive (bottom-right)
//
// # Thread Safety
//
// Buffer and EdgeMap are immutable after construction and safe for
// concurrent reads. ImageCache is safe for concurrent use.
//
// # Error Handling
//
// Only decoding returns errors (ErrDecodeTimeout, ErrUnsupportedFormat,
// ErrEmptyImage). Scanning helpers clip their regions to the image instead of
// failing, because the detector treats out-of-range evidence as absent.
package imaging
