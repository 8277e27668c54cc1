package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
)

// PixelSource is read-only RGBA access to a decoded screenshot.
//
// Coordinates are 0-based with the origin at the top-left corner regardless of
// the bounds of the underlying image. Reads outside [0,Width) x [0,Height)
// return the zero color rather than panicking, so scanners can probe borders
// without bounds checks of their own.
type PixelSource interface {
	Width() int
	Height() int
	RGBAAt(x, y int) color.RGBA
}

// Buffer is the standard PixelSource backed by an *image.RGBA.
//
// A Buffer is immutable after construction and is safe for concurrent reads,
// which is what the ensemble relies on when strategies share one screenshot.
type Buffer struct {
	img    *image.RGBA
	width  int
	height int
}

// NewBuffer copies img into an RGBA buffer.
func NewBuffer(img image.Image) *Buffer {
	rgba := clone.AsRGBA(img)
	b := rgba.Bounds()
	if b.Min != (image.Point{}) {
		// Rebase so that RGBAAt(0,0) is the top-left pixel.
		rgba = &image.RGBA{
			Pix:    rgba.Pix,
			Stride: rgba.Stride,
			Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
		}
	}
	return &Buffer{img: rgba, width: b.Dx(), height: b.Dy()}
}

// NewBufferFromPixels wraps a tightly packed RGBA byte slice (4 bytes per
// pixel, row-major). The slice is not copied.
func NewBufferFromPixels(width, height int, pix []uint8) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer dimensions %dx%d: %w", width, height, ErrEmptyImage)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel slice has %d bytes, want %d", len(pix), width*height*4)
	}
	return &Buffer{
		img: &image.RGBA{
			Pix:    pix,
			Stride: width * 4,
			Rect:   image.Rect(0, 0, width, height),
		},
		width:  width,
		height: height,
	}, nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// RGBAAt returns the pixel at (x, y), or the zero color outside the buffer.
func (b *Buffer) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return color.RGBA{}
	}
	off := y*b.img.Stride + x*4
	p := b.img.Pix[off : off+4 : off+4]
	return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Image exposes the backing image for read-only use by image operations.
func (b *Buffer) Image() image.Image { return b.img }

// ToImage returns an image.Image view of any PixelSource. Buffers return their
// backing image; other sources are copied.
func ToImage(src PixelSource) image.Image {
	if b, ok := src.(*Buffer); ok {
		return b.img
	}
	out := image.NewRGBA(image.Rect(0, 0, src.Width(), src.Height()))
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			out.SetRGBA(x, y, src.RGBAAt(x, y))
		}
	}
	return out
}

// SubImage copies rect out of src into a new RGBA image whose origin is (0,0).
// The rectangle is clipped to the source; an empty intersection yields an
// empty image.
func SubImage(src PixelSource, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out.SetRGBA(x-rect.Min.X, y-rect.Min.Y, src.RGBAAt(x, y))
		}
	}
	return out
}
