// Package detectiontest renders synthetic hotbar screenshots for tests.
package detectiontest

import (
	"image"
	"image/color"
)

// Background is the panel colour behind the icons.
var Background = color.RGBA{30, 30, 30, 255}

// Border colours matching the default palette, lowest rarity first.
var (
	Common    = color.RGBA{0x33, 0xCC, 0x33, 255}
	Uncommon  = color.RGBA{0x33, 0x99, 0xFF, 255}
	Rare      = color.RGBA{0x99, 0x33, 0xFF, 255}
	Epic      = color.RGBA{0xFF, 0x33, 0x33, 255}
	Legendary = color.RGBA{0xFF, 0xAA, 0x00, 255}
)

// Hotbar describes a single row of bordered icon cells on a flat background.
type Hotbar struct {
	Width, Height int
	StartX, TopY  int
	CellSize      int
	Pitch         int
	BorderWidth   int
	Borders       []color.RGBA // one per cell
}

// Default1080p is a six-cell hotbar near the bottom of a 1920x1080 frame:
// 45 px cells every 50 px starting at (800, 1000).
func Default1080p() Hotbar {
	return Hotbar{
		Width:       1920,
		Height:      1080,
		StartX:      800,
		TopY:        1000,
		CellSize:    45,
		Pitch:       50,
		BorderWidth: 3,
		Borders:     []color.RGBA{Common, Uncommon, Rare, Epic, Legendary, Common},
	}
}

// Cell returns the bounds of cell i including its border.
func (h Hotbar) Cell(i int) image.Rectangle {
	x := h.StartX + i*h.Pitch
	return image.Rect(x, h.TopY, x+h.CellSize, h.TopY+h.CellSize)
}

// Render draws the frame.
func (h Hotbar) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, h.Width, h.Height))
	FillRect(img, img.Bounds(), Background)
	for i, border := range h.Borders {
		cell := h.Cell(i)
		FillRect(img, cell, border)
		Icon(img, cell.Inset(h.BorderWidth), i)
	}
	return img
}

// Icon paints the art for icon variant n into rect. The six variants are
// black and white patterns chosen to correlate poorly with each other:
// vertical stripes, horizontal stripes, a checkerboard, diagonal stripes, a
// disc and a cross. Patterns scale with rect, so a variant rendered at any
// size resamples cleanly to any other size.
func Icon(img *image.RGBA, rect image.Rectangle, n int) {
	w, h := rect.Dx(), rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Pattern space is 64x64 regardless of rect size.
			u := (float64(x) + 0.5) * 64 / float64(w)
			v := (float64(y) + 0.5) * 64 / float64(h)
			var on bool
			switch n % 6 {
			case 0:
				on = int(u/16)%2 == 0
			case 1:
				on = int(v/16)%2 == 0
			case 2:
				on = (int(u/21)+int(v/21))%2 == 0
			case 3:
				on = int((u+v)/22)%2 == 0
			case 4:
				on = (u-32)*(u-32)+(v-32)*(v-32) <= 20*20
			case 5:
				on = absFloat(u-32) < 8 || absFloat(v-32) < 8
			}
			c := color.RGBA{0, 0, 0, 255}
			if on {
				c = color.RGBA{255, 255, 255, 255}
			}
			px, py := rect.Min.X+x, rect.Min.Y+y
			if (image.Point{X: px, Y: py}).In(img.Bounds()) {
				img.SetRGBA(px, py, c)
			}
		}
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// IconTemplate renders icon variant n on its own, size x size pixels, the
// way a catalogue template would look.
func IconTemplate(n, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	Icon(img, img.Bounds(), n)
	return img
}

// Uniform returns a single-colour frame.
func Uniform(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	FillRect(img, img.Bounds(), c)
	return img
}

// FillRect paints rect in c, clipped to img.
func FillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}
