package ensemble

import (
	"math"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

// merge flattens the per-strategy lists, in strategy order, and adjusts
// each confidence for cross-strategy agreement, grid fit and border rarity.
func merge(in strategy.Input, perStrategy [][]detection.Result) []detection.Result {
	type tagged struct {
		det      detection.Result
		strategy int
	}
	var all []tagged
	for s, results := range perStrategy {
		for _, d := range results {
			all = append(all, tagged{det: d, strategy: s})
		}
	}

	origin, haveGrid := gridOrigin(in)
	out := make([]detection.Result, len(all))
	for i, t := range all {
		d := t.det
		agreeing := make(map[int]bool)
		for _, other := range all {
			if other.strategy == t.strategy || other.det.Entity.ID != d.Entity.ID {
				continue
			}
			if !d.HasPosition() {
				agreeing[other.strategy] = true
			} else if other.det.HasPosition() && detection.IoU(*d.Position, *other.det.Position) >= AgreementIoU {
				agreeing[other.strategy] = true
			}
		}

		conf := d.Confidence
		if d.HasPosition() {
			conf += math.Min(maxAgreementBoost, agreementBoost*float64(len(agreeing)))
			if haveGrid && detection.FitsGrid(d.Position.CenterX(), origin, in.Grid.XSpacing, in.Grid.Tolerance) {
				conf += gridBoost
			}
			if in.Palette != nil && d.Entity.Rarity.Valid() {
				if observed, ok := in.Palette.BorderRarity(in.Source, *d.Position); ok {
					if observed == d.Entity.Rarity {
						conf += rarityMatchBoost
					} else {
						conf *= rarityMismatchRate
					}
				}
			}
		} else {
			conf += math.Min(maxPresenceBoost, presenceBoost*float64(len(agreeing)))
		}

		d.Confidence = math.Max(0, math.Min(1, conf))
		out[i] = d
	}
	return out
}

// gridOrigin is the x-centre the grid is anchored on: the first candidate
// cell of an inferred grid.
func gridOrigin(in strategy.Input) (float64, bool) {
	if !in.HaveGrid || len(in.Cells) == 0 || in.Grid.XSpacing <= 0 {
		return 0, false
	}
	return in.Cells[0].CenterX(), true
}
