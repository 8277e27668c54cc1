package strategy

import (
	"context"
	"image"
	"math"

	"github.com/jtn0123/megabonk-vision/internal/detection"
)

// MethodTemplate labels results from TemplateMatch.
const MethodTemplate = "template_match"

// TemplateMatch correlates every entity template against the interior of
// each candidate cell and reports the best entity per cell.
//
// The cell estimate may be a few pixels off, so each template is searched
// over small shifts around the expected position; the reported box is the
// shifted one.
type TemplateMatch struct{}

// ID implements Strategy.
func (TemplateMatch) ID() string { return IDTemplate }

// Detect implements Strategy.
func (TemplateMatch) Detect(ctx context.Context, in Input) ([]detection.Result, error) {
	size := in.Scale.IconSize
	if size <= 0 || len(in.Cells) == 0 {
		return nil, nil
	}
	inset := innerInset(size)
	inner := size - 2*inset
	shift := max(2, size/15)

	templates := prefetch(in, inner)
	plane := newLumaPlane(in.Source, bandRect(in, shift))

	var out []detection.Result
	for _, cell := range in.Cells {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r := cell.Rect()
		x0, y0 := r.Min.X+inset, r.Min.Y+inset

		var scores []scoredEntity
		for i, tpl := range templates {
			if tpl == nil {
				continue
			}
			score, bx, by := tpl.bestShift(plane, x0, y0, shift)
			scores = append(scores, scoredEntity{entity: &in.Entities[i], score: score, x: bx, y: by})
		}
		first, second := topTwo(scores)
		if first.entity == nil || first.score < in.Threshold {
			continue
		}
		conf := first.score
		// Two templates fitting almost equally well is weak evidence.
		if second.entity != nil && first.score-second.score < 0.05 {
			conf *= 0.85
		}
		pos := &detection.ROI{
			X:      float64(first.x - inset),
			Y:      float64(first.y - inset),
			Width:  float64(size),
			Height: float64(size),
		}
		out = append(out, newResult(first.entity, conf, pos, MethodTemplate))
	}
	return out, nil
}

// bandRect is the hotbar band widened by pad pixels on every side.
func bandRect(in Input, pad int) image.Rectangle {
	top := in.Region.TopY
	bottom := in.Region.BottomY
	for _, c := range in.Cells {
		top = min(top, int(math.Floor(c.Y)))
		bottom = max(bottom, int(math.Ceil(c.Y+c.Height)))
	}
	return image.Rect(-pad, top-pad, in.Width+pad, bottom+pad)
}
