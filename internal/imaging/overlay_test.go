package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestAnnotate(t *testing.T) {
	src := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})
	green := color.RGBA{0, 255, 0, 255}

	out := Annotate(src, []Annotation{
		{Rect: image.Rect(20, 30, 60, 70), Label: "0.87", Color: green},
	}, 2)

	// Outline pixels carry the annotation color.
	for _, p := range []image.Point{{20, 50}, {21, 50}, {59, 50}, {40, 30}, {40, 69}} {
		if got := out.RGBAAt(p.X, p.Y); got != green {
			t.Errorf("outline at %v: got %v, want green", p, got)
		}
	}

	// Interior untouched.
	if got := out.RGBAAt(40, 50); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("interior: got %v, want black", got)
	}

	// Label glyphs are drawn above the box.
	white := 0
	for y := 30 - labelHeight - 1; y < 30; y++ {
		for x := 20; x < 50; x++ {
			if out.RGBAAt(x, y) == (color.RGBA{255, 255, 255, 255}) {
				white++
			}
		}
	}
	if white == 0 {
		t.Error("label not drawn")
	}

	// Source not modified.
	if got := src.RGBAAt(20, 50); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("source modified: got %v", got)
	}
}

func TestAnnotate_DefaultColorAndClipping(t *testing.T) {
	src := createInMemoryImage(50, 50, color.White)

	// Partly outside the image, label at the very top.
	out := Annotate(src, []Annotation{
		{Rect: image.Rect(-10, 0, 20, 20), Label: "1?"},
	}, 0)

	if got := out.RGBAAt(19, 10); got != DefaultOverlayColor {
		t.Errorf("right edge: got %v, want default color", got)
	}
}
