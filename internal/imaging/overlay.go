package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultOverlayColor is used when an annotation has no color.
var DefaultOverlayColor = color.RGBA{255, 0, 0, 255}

// labelHeight is the height of a label box (7x13 glyphs plus padding).
const labelHeight = 14

// Annotation is a rectangle to outline on an overlay with an optional label
// drawn just above its top-left corner.
type Annotation struct {
	Rect  image.Rectangle
	Label string
	Color color.RGBA
}

// Annotate copies img and draws each annotation's outline (thickness pixels
// wide) and label onto the copy. The source image is not modified.
//
// Labels use the 7x13 fixed font from x/image and sit above the box, or
// just inside it when there is no room above.
func Annotate(img image.Image, annotations []Annotation, thickness int) *image.RGBA {
	if thickness < 1 {
		thickness = 1
	}
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, a := range annotations {
		c := a.Color
		if c == (color.RGBA{}) {
			c = DefaultOverlayColor
		}
		drawOutline(result, a.Rect, thickness, c)
		if a.Label != "" {
			labelY := a.Rect.Min.Y - labelHeight - 1
			if labelY < bounds.Min.Y {
				labelY = a.Rect.Min.Y + thickness + 1
			}
			drawLabel(result, a.Rect.Min.X+1, labelY, a.Label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
		}
	}
	return result
}

func drawOutline(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	bounds := img.Bounds()
	r = r.Canon()
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setClipped(img, bounds, x, r.Min.Y+t, c)
			setClipped(img, bounds, x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setClipped(img, bounds, r.Min.X+t, y, c)
			setClipped(img, bounds, r.Max.X-1-t, y, c)
		}
	}
}

func setClipped(img *image.RGBA, bounds image.Rectangle, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(bounds) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel draws text with its top-left corner at (x, top) over a
// translucent box.
func drawLabel(img *image.RGBA, x, top int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	box := image.Rect(x-1, top, x+w+1, top+labelHeight).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, top+face.Ascent),
	}
	d.DrawString(text)
}
