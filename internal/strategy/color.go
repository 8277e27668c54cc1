package strategy

import (
	"context"
	"image"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// MethodColor labels results from ColorFilter.
const MethodColor = "color_filter"

// colorRange is the Lab distance at which colour similarity reaches zero.
const colorRange = 0.3

// ColorFilter compares the mean colour of each cell interior with the mean
// colour of every template. When the cell's border shows a rarity, only
// entities of that rarity are considered.
//
// Without cells it falls back to band-level presence: every entity whose
// colour appears somewhere in the band is reported without a position and
// with a confidence low enough to be flagged.
type ColorFilter struct{}

// ID implements Strategy.
func (ColorFilter) ID() string { return IDColor }

// Detect implements Strategy.
func (c ColorFilter) Detect(ctx context.Context, in Input) ([]detection.Result, error) {
	size := in.Scale.IconSize
	if size <= 0 {
		return nil, nil
	}
	inset := innerInset(size)
	templates := prefetch(in, size-2*inset)
	if len(in.Cells) == 0 {
		return c.bandPresence(ctx, in, templates)
	}

	var out []detection.Result
	for _, cell := range in.Cells {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		inner := cell.Rect().Inset(inset)
		mean, ok := imaging.MeanColor(in.Source, inner, 2)
		if !ok {
			continue
		}
		observed, _ := colorful.MakeColor(mean)

		var rarity detection.Rarity
		var haveRarity bool
		if in.Palette != nil {
			rarity, haveRarity = in.Palette.BorderRarity(in.Source, cell)
		}

		var scores []scoredEntity
		for i, tpl := range templates {
			if tpl == nil || !tpl.HasColor {
				continue
			}
			e := &in.Entities[i]
			if haveRarity && e.Rarity != detection.RarityUnknown && e.Rarity != rarity {
				continue
			}
			scores = append(scores, scoredEntity{entity: e, score: colorSimilarity(observed, tpl.Color)})
		}
		first, second := topTwo(scores)
		if first.entity == nil {
			continue
		}
		conf := first.score * colorMargin(first.score-second.score)
		if conf < in.Threshold {
			continue
		}
		pos := cell
		pos.Label = ""
		out = append(out, newResult(first.entity, conf, &pos, MethodColor))
	}
	return out, nil
}

// bandPresence tiles the band at icon size and reports entities whose
// colour matches some tile. Results carry no position.
func (ColorFilter) bandPresence(ctx context.Context, in Input, templates []*ScaledTemplate) ([]detection.Result, error) {
	size := in.Scale.IconSize
	y0 := int(in.Region.CenterY()) - size/2
	x0, x1 := in.Width*15/100, in.Width*85/100

	var tiles []colorful.Color
	for x := x0; x+size <= x1; x += size / 2 {
		if c, ok := imaging.MeanColor(in.Source, image.Rect(x, y0, x+size, y0+size), 3); ok {
			lab, _ := colorful.MakeColor(c)
			tiles = append(tiles, lab)
		}
	}

	var out []detection.Result
	for i, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if tpl == nil || !tpl.HasColor {
			continue
		}
		best := 0.0
		for _, t := range tiles {
			best = max(best, colorSimilarity(t, tpl.Color))
		}
		if best >= in.Threshold {
			out = append(out, newResult(&in.Entities[i], 0.6*best, nil, MethodColor))
		}
	}
	return out, nil
}

func colorSimilarity(a, b colorful.Color) float64 {
	return clampUnit(1 - a.DistanceLab(b)/colorRange)
}

// colorMargin discounts a best match that barely beats the runner-up.
func colorMargin(gap float64) float64 {
	if gap >= 0.1 {
		return 1
	}
	return 0.5 + 5*gap
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
