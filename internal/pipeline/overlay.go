package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

var regionOutline = color.RGBA{255, 255, 255, 255}

// Annotations turns a report into overlay boxes: the hotbar band in white,
// then one box per positioned detection in its rarity colour, labelled with
// its confidence in percent. Uncertain detections get a trailing '?'.
func Annotations(r *Report, p *detection.Palette) []imaging.Annotation {
	anns := []imaging.Annotation{{
		Rect:  image.Rect(0, r.Region.TopY, r.Width, r.Region.BottomY),
		Color: regionOutline,
	}}
	for _, d := range r.Detections {
		if !d.HasPosition() {
			continue
		}
		label := fmt.Sprintf("%d%%", int(math.Round(d.Confidence*100)))
		if d.NeedsConfirmation {
			label += "?"
		}
		a := imaging.Annotation{Rect: d.Position.Rect(), Label: label}
		if p != nil {
			if c, ok := p.Color(d.Entity.Rarity); ok {
				a.Color = c
			}
		}
		anns = append(anns, a)
	}
	return anns
}

// Overlay draws r onto a copy of img.
func (d *Detector) Overlay(img image.Image, r *Report) *image.RGBA {
	return imaging.Annotate(img, Annotations(r, d.palette), 2)
}
