package imaging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"sync"
	"time"

	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultDecodeTimeout bounds a single screenshot decode when the caller does
// not supply a timeout.
const DefaultDecodeTimeout = 5 * time.Second

var (
	// ErrDecodeTimeout is returned when decoding does not finish in time.
	ErrDecodeTimeout = errors.New("image decode timed out")

	// ErrUnsupportedFormat is returned for data no registered decoder accepts.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrEmptyImage is returned for images with a zero dimension.
	ErrEmptyImage = errors.New("image has no pixels")
)

type decodeResult struct {
	img    image.Image
	format string
	err    error
}

// Decode decodes a screenshot from r, giving up after timeout (or
// DefaultDecodeTimeout when timeout <= 0) or when ctx is cancelled.
//
// Supported formats are PNG, JPEG, GIF and WebP. The returned format string is
// the name reported by the decoder ("png", "jpeg", "gif", "webp").
//
// # Errors
//
//   - ErrUnsupportedFormat if no decoder recognises the data
//   - ErrDecodeTimeout if the deadline passes first
//   - ErrEmptyImage if the decoded image has a zero dimension
//   - ctx.Err() if the context is cancelled
func Decode(ctx context.Context, r io.Reader, timeout time.Duration) (image.Image, string, error) {
	if timeout <= 0 {
		timeout = DefaultDecodeTimeout
	}

	done := make(chan decodeResult, 1)
	go func() {
		img, format, err := image.Decode(bufio.NewReader(r))
		done <- decodeResult{img: img, format: format, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, image.ErrFormat) {
				return nil, "", fmt.Errorf("failed to decode image: %w", ErrUnsupportedFormat)
			}
			return nil, "", fmt.Errorf("failed to decode image: %w", res.err)
		}
		if b := res.img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
			return nil, "", ErrEmptyImage
		}
		return res.img, res.format, nil
	case <-timer.C:
		return nil, "", fmt.Errorf("after %s: %w", timeout, ErrDecodeTimeout)
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// LoadFile opens and decodes an image file with Decode semantics.
func LoadFile(ctx context.Context, path string, timeout time.Duration) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := Decode(ctx, f, timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ImageCache provides thread-safe caching of loaded images to avoid redundant disk reads.
//
// The cache stores decoded image.Image objects keyed by their file path. It is
// used for icon templates and for screenshots the MCP server is asked about
// more than once; once an image is loaded, subsequent Load() calls for the
// same path return the cached copy without disk I/O.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
type ImageCache struct {
	mu      sync.RWMutex
	images  map[string]image.Image
	timeout time.Duration
}

// NewImageCache creates and initializes a new empty image cache.
//
// timeout bounds each decode; zero selects DefaultDecodeTimeout.
func NewImageCache(timeout time.Duration) *ImageCache {
	return &ImageCache{
		images:  make(map[string]image.Image),
		timeout: timeout,
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// The image is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := LoadFile(context.Background(), path, c.timeout)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of a cached or freshly loaded image.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
