package strategy

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

// MethodSlidingWindow labels results from SlidingWindow.
const MethodSlidingWindow = "sliding_window"

// DefaultMinEdgeDensity is the edge fraction below which a window is
// treated as an empty slot.
const DefaultMinEdgeDensity = 0.02

// SlidingWindow scans the central 70% of the band with icon-sized windows,
// independent of any grid hypothesis. Windows over flat background are
// skipped using an edge map; the rest are matched against every template
// with a small local search and the hits are de-duplicated with NMS.
type SlidingWindow struct {
	// MinEdgeDensity overrides DefaultMinEdgeDensity when positive.
	MinEdgeDensity float64
}

// ID implements Strategy.
func (SlidingWindow) ID() string { return IDSlidingWindow }

// Detect implements Strategy.
func (s SlidingWindow) Detect(ctx context.Context, in Input) ([]detection.Result, error) {
	size := in.Scale.IconSize
	if size <= 0 || in.Region.Height() <= 0 {
		return nil, nil
	}
	minDensity := s.MinEdgeDensity
	if minDensity <= 0 {
		minDensity = DefaultMinEdgeDensity
	}
	inset := innerInset(size)
	stride := max(2, size/8)
	search := stride / 2

	x0, x1 := in.Width*15/100, in.Width*85/100
	var ys []int
	if in.Region.Height() <= size {
		ys = []int{int(in.Region.CenterY()) - size/2}
	} else {
		for y := in.Region.TopY; y+size <= in.Region.BottomY; y += stride {
			ys = append(ys, y)
		}
	}
	var xs []int
	for x := x0; x+size <= x1; x += stride {
		xs = append(xs, x)
	}
	if len(xs) == 0 || len(ys) == 0 {
		return nil, nil
	}

	scan := image.Rect(x0, ys[0], x1, ys[len(ys)-1]+size)
	edges := imaging.NewEdgeMap(in.Source, scan, 0)
	plane := newLumaPlane(in.Source, scan.Inset(-search))
	templates := prefetch(in, size-2*inset)

	hits := make([]*detection.Result, len(xs)*len(ys))
	parallel.Line(len(hits), func(start, end int) {
		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return
			}
			x, y := xs[i%len(xs)], ys[i/len(xs)]
			if edges.Density(image.Rect(x, y, x+size, y+size)) < minDensity {
				continue
			}
			var scores []scoredEntity
			for j, tpl := range templates {
				if tpl == nil {
					continue
				}
				score, bx, by := tpl.bestShift(plane, x+inset, y+inset, search)
				scores = append(scores, scoredEntity{entity: &in.Entities[j], score: score, x: bx, y: by})
			}
			first, _ := topTwo(scores)
			if first.entity == nil || first.score < in.Threshold {
				continue
			}
			pos := &detection.ROI{
				X:      float64(first.x - inset),
				Y:      float64(first.y - inset),
				Width:  float64(size),
				Height: float64(size),
			}
			r := newResult(first.entity, first.score, pos, MethodSlidingWindow)
			hits[i] = &r
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []detection.Result
	for _, h := range hits {
		if h != nil {
			out = append(out, *h)
		}
	}
	return detection.NonMaxSuppression(out, detection.DefaultNMSThreshold), nil
}
