package detection

import (
	"math"

	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

// minEdgeRowCoverage is the share of sampled band rows a column must match
// to count as a vertical border.
const minEdgeRowCoverage = 0.6

// DetectEdges scans the central 70% of the band for vertical rarity-coloured
// borders and returns their x-positions in ascending order.
//
// Adjacent matching columns, and columns separated by gaps of up to a sixth
// of iconSize (the sliver of panel between two neighbouring cells), collapse
// into a single mark at the centre of the run. With three or more marks the
// result is passed through FilterConsistentSpacing.
func DetectEdges(src imaging.PixelSource, width int, region HotbarRegion, palette *Palette, iconSize int) []EdgeMark {
	if palette == nil {
		palette = DefaultPalette()
	}
	if region.Height() <= 0 || width <= 0 {
		return nil
	}

	var rows []int
	rowStep := region.Height() / 24
	if rowStep < 1 {
		rowStep = 1
	}
	for y := region.TopY; y < region.BottomY; y += rowStep {
		rows = append(rows, y)
	}
	minHits := int(math.Ceil(minEdgeRowCoverage * float64(len(rows))))
	if minHits < 1 {
		minHits = 1
	}

	x0 := int(float64(width) * scanMarginRatio)
	x1 := int(float64(width) * (1 - scanMarginRatio))

	size := iconSize
	if size <= 0 {
		size = region.Height()
	}
	bandMarks := scanBorderColumns(src, palette, rows, x0, x1, minHits, max(2, size/6), size/2)

	marks := make([]EdgeMark, 0, len(bandMarks))
	for _, m := range bandMarks {
		marks = append(marks, EdgeMark{X: m.center(), Rarity: m.rarity})
	}
	if len(marks) >= 3 {
		marks = FilterConsistentSpacing(marks, iconSize)
	}
	return marks
}

// FilterConsistentSpacing drops marks whose spacing to both neighbours
// deviates from the dominant spacing by more than the adaptive tolerance.
// Fewer than three marks are returned unchanged.
func FilterConsistentSpacing(marks []EdgeMark, iconSize int) []EdgeMark {
	if len(marks) < 3 {
		return marks
	}
	spacings := make([]float64, len(marks)-1)
	for i := 1; i < len(marks); i++ {
		spacings[i-1] = float64(marks[i].X - marks[i-1].X)
	}
	mode, ok := FindMode(spacings)
	if !ok {
		return marks
	}
	tol := CalculateAdaptiveTolerance(spacings, float64(iconSize))

	kept := make([]EdgeMark, 0, len(marks))
	for i, m := range marks {
		fits := false
		if i > 0 && math.Abs(spacings[i-1]-mode) <= tol {
			fits = true
		}
		if i < len(spacings) && math.Abs(spacings[i]-mode) <= tol {
			fits = true
		}
		if fits {
			kept = append(kept, m)
		}
	}
	return kept
}
