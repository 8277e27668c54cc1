package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
)

// ErrInvalidColor is returned by ParseHexColor for malformed input.
var ErrInvalidColor = errors.New("invalid hex color")

// Luma returns the ITU-R BT.601 luminance of c in the range 0-255.
// Formula: Y = 0.299*R + 0.587*G + 0.114*B
func Luma(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// HexString formats c as "#RRGGBB" (alpha excluded).
func HexString(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseHexColor parses a hex color string like "#FF0000" or "#FF000080".
// The leading '#' is optional; 6-digit forms are fully opaque.
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string: %w", ErrInvalidColor)
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%q: %w", hex, ErrInvalidColor)
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%q: %w", hex, ErrInvalidColor)
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length %d: %w", len(hex), ErrInvalidColor)
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// RegionLumaStats samples luminance over rect every step pixels in both
// directions and returns its mean and population standard deviation.
//
// The rectangle is clipped to the source. An empty region yields zero Stats.
func RegionLumaStats(src PixelSource, rect image.Rectangle, step int) Stats {
	if step < 1 {
		step = 1
	}
	rect = rect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))

	var acc statsAccumulator
	for y := rect.Min.Y; y < rect.Max.Y; y += step {
		for x := rect.Min.X; x < rect.Max.X; x += step {
			acc.add(Luma(src.RGBAAt(x, y)))
		}
	}
	return acc.stats()
}

// MeanColor averages the RGB channels of rect, sampled every step pixels.
// Fully transparent pixels are skipped. ok is false when nothing was sampled.
func MeanColor(src PixelSource, rect image.Rectangle, step int) (c color.RGBA, ok bool) {
	if step < 1 {
		step = 1
	}
	rect = rect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))

	var sumR, sumG, sumB, n float64
	for y := rect.Min.Y; y < rect.Max.Y; y += step {
		for x := rect.Min.X; x < rect.Max.X; x += step {
			p := src.RGBAAt(x, y)
			if p.A == 0 {
				continue
			}
			sumR += float64(p.R)
			sumG += float64(p.G)
			sumB += float64(p.B)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}, false
	}
	return color.RGBA{
		R: uint8(sumR/n + 0.5),
		G: uint8(sumG/n + 0.5),
		B: uint8(sumB/n + 0.5),
		A: 255,
	}, true
}
