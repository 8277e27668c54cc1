package detection

import (
	"fmt"
	"math"
	"sort"

	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

// Grid inference tuning.
const (
	// ModeBucketWidth is the width in pixels of the spacing histogram
	// buckets used by FindMode.
	ModeBucketWidth = 5.0

	baseToleranceRatio = 0.20
	minToleranceRatio  = 0.15
	maxToleranceRatio  = 0.35
	toleranceStdDevs   = 2.5

	// fallbackSlots is the number of cells laid out when no grid can be
	// inferred from edges.
	fallbackSlots = 8
)

// FindMode returns the dominant spacing.
//
// Spacings are bucketed by round(s/ModeBucketWidth); the most populated
// bucket wins, ties going to the smaller bucket, and the mean of its members
// is returned. Non-positive spacings are ignored. ok is false when no
// positive spacing remains.
func FindMode(spacings []float64) (mode float64, ok bool) {
	type bucket struct {
		n   int
		sum float64
	}
	buckets := make(map[int]*bucket)
	for _, s := range spacings {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		key := int(math.Round(s / ModeBucketWidth))
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.n++
		b.sum += s
	}
	if len(buckets) == 0 {
		return 0, false
	}

	bestKey, bestN := 0, 0
	for key, b := range buckets {
		if b.n > bestN || (b.n == bestN && key < bestKey) {
			bestKey, bestN = key, b.n
		}
	}
	b := buckets[bestKey]
	return b.sum / float64(b.n), true
}

// CalculateAdaptiveTolerance returns how far a position may stray from a grid
// line.
//
// With fewer than four samples the tolerance is 20% of iconSize; otherwise it
// is 2.5 sample standard deviations of the spacings. Either way the result is
// clamped to [0.15, 0.35] * iconSize, so a perfectly regular grid still gets
// a non-zero tolerance.
func CalculateAdaptiveTolerance(spacings []float64, iconSize float64) float64 {
	tol := baseToleranceRatio * iconSize
	if len(spacings) >= 4 {
		tol = toleranceStdDevs * imaging.SampleStdDev(spacings)
	}
	lo, hi := minToleranceRatio*iconSize, maxToleranceRatio*iconSize
	if tol < lo {
		tol = lo
	}
	if tol > hi {
		tol = hi
	}
	return tol
}

// FitsGrid reports whether value lies on the grid starting at gridStart with
// the given spacing, within tolerance. The offset wraps, so a value just
// below the next grid line fits too. A non-positive spacing always fits.
func FitsGrid(value, gridStart, spacing, tolerance float64) bool {
	if spacing <= 0 {
		return true
	}
	offset := math.Mod(value-gridStart, spacing)
	if offset < 0 {
		offset += spacing
	}
	return offset <= tolerance || spacing-offset <= tolerance
}

// adjacentSpacings returns the differences between consecutive values of a
// sorted slice.
func adjacentSpacings(sorted []float64) []float64 {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out = append(out, sorted[i]-sorted[i-1])
	}
	return out
}

// rowCluster is a group of detection indices with a running-mean centre.
type rowCluster struct {
	centerY float64
	members []int
}

// clusterIndices groups the positioned detections of dets into rows and
// returns the clusters ordered by centre plus the indices of detections with
// no position.
func clusterIndices(dets []Result, tolerance float64) ([]rowCluster, []int) {
	var spatial, unplaced []int
	for i, d := range dets {
		if d.HasPosition() {
			spatial = append(spatial, i)
		} else {
			unplaced = append(unplaced, i)
		}
	}
	sort.SliceStable(spatial, func(a, b int) bool {
		return dets[spatial[a]].Position.Y < dets[spatial[b]].Position.Y
	})

	var clusters []rowCluster
	for _, idx := range spatial {
		y := dets[idx].Position.Y
		best, bestDist := -1, math.Inf(1)
		for c := range clusters {
			if d := math.Abs(clusters[c].centerY - y); d <= tolerance && d < bestDist {
				best, bestDist = c, d
			}
		}
		if best < 0 {
			clusters = append(clusters, rowCluster{centerY: y, members: []int{idx}})
			continue
		}
		cl := &clusters[best]
		cl.members = append(cl.members, idx)
		cl.centerY += (y - cl.centerY) / float64(len(cl.members))
	}
	sort.SliceStable(clusters, func(a, b int) bool { return clusters[a].centerY < clusters[b].centerY })
	return clusters, unplaced
}

// ClusterByY groups detections into rows by the proximity of their top
// edge. A detection joins the nearest row whose running-mean centre lies
// within tolerance, otherwise it starts a new row. Rows are returned top to
// bottom; detections without a position are returned separately in input
// order.
func ClusterByY(dets []Result, tolerance float64) (rows [][]Result, unplaced []Result) {
	clusters, rest := clusterIndices(dets, tolerance)
	for _, cl := range clusters {
		row := make([]Result, 0, len(cl.members))
		for _, idx := range cl.members {
			row = append(row, dets[idx])
		}
		rows = append(rows, row)
	}
	for _, idx := range rest {
		unplaced = append(unplaced, dets[idx])
	}
	return rows, unplaced
}

// SortRowMajor orders positioned detections top row first, then left to
// right. Detections without a position follow in their original order.
func SortRowMajor(dets []Result, rowTolerance float64) []Result {
	clusters, rest := clusterIndices(dets, rowTolerance)
	out := make([]Result, 0, len(dets))
	for _, cl := range clusters {
		members := append([]int(nil), cl.members...)
		sort.SliceStable(members, func(a, b int) bool {
			return dets[members[a]].Position.X < dets[members[b]].Position.X
		})
		for _, idx := range members {
			out = append(out, dets[idx])
		}
	}
	for _, idx := range rest {
		out = append(out, dets[idx])
	}
	return out
}

// InferGrid derives grid spacing from edge marks. ok is false with fewer
// than two marks or no positive spacing.
func InferGrid(edges []EdgeMark, iconSize int) (GridParams, bool) {
	if len(edges) < 2 {
		return GridParams{}, false
	}
	spacings := adjacentSpacings(markPositions(edges))
	mode, ok := FindMode(spacings)
	if !ok {
		return GridParams{}, false
	}
	return GridParams{
		XSpacing:  mode,
		YSpacing:  mode,
		Tolerance: CalculateAdaptiveTolerance(spacings, float64(iconSize)),
	}, true
}

func markPositions(edges []EdgeMark) []float64 {
	xs := make([]float64, len(edges))
	for i, e := range edges {
		xs[i] = float64(e.X)
	}
	sort.Float64s(xs)
	return xs
}

// GridCells turns edge marks into candidate icon cells inside region.
//
// Consecutive marks whose gap is close to a whole number of grid pitches
// bound that many cells, centred between the marks. When no grid is known,
// a row of fallback cells is centred horizontally at the usual pitch.
func GridCells(grid GridParams, haveGrid bool, edges []EdgeMark, region HotbarRegion, iconSize, width int) []ROI {
	size := float64(iconSize)
	top := region.CenterY() - size/2

	var cells []ROI
	if haveGrid && grid.XSpacing > 0 && len(edges) >= 2 {
		xs := markPositions(edges)
		for i := 1; i < len(xs); i++ {
			gap := xs[i] - xs[i-1]
			n := int(math.Round(gap / grid.XSpacing))
			if n < 1 || math.Abs(gap-float64(n)*grid.XSpacing) > grid.Tolerance*float64(n) {
				continue
			}
			step := gap / float64(n)
			for k := 0; k < n; k++ {
				cx := xs[i-1] + (float64(k)+0.5)*step
				cells = append(cells, ROI{X: cx - size/2, Y: top, Width: size, Height: size})
			}
		}
	}

	if len(cells) == 0 {
		pitch := size / DefaultIconFillRatio
		start := float64(width)/2 - pitch*fallbackSlots/2
		for k := 0; k < fallbackSlots; k++ {
			cx := start + (float64(k)+0.5)*pitch
			cells = append(cells, ROI{X: cx - size/2, Y: top, Width: size, Height: size})
		}
	}

	for i := range cells {
		cells[i].Label = fmt.Sprintf("cell-%d", i)
	}
	return cells
}
