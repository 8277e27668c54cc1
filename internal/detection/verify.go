package detection

import (
	"sort"
)

// minVerifyDetections is the number of positioned detections needed before
// the verifier will reject anything.
const minVerifyDetections = 3

// duplicateSpacingRatio is the share of the icon size below which two
// detections are taken to claim the same slot rather than neighbouring ones.
const duplicateSpacingRatio = 0.5

// VerifyResult is the outcome of VerifyGridPattern.
type VerifyResult struct {
	IsValid  bool        `json:"is_valid"`
	Filtered []Result    `json:"filtered_detections"`
	Grid     *GridParams `json:"grid_params,omitempty"`
}

// VerifyGridPattern checks that detections sit on a regular icon grid and
// drops the ones that do not.
//
// Detections are clustered into rows (tolerance iconSize/2). The dominant
// horizontal spacing and its adaptive tolerance are computed from the
// adjacent spacings of all rows; spacings under half an icon are duplicate
// claims on one slot, as left by several strategies before suppression, and
// are not counted. In each row the detection with the most
// grid-aligned peers anchors the grid, and a detection is kept when its x
// lies a whole number of spacings from the anchor, which tolerates skipped
// slots. The grid is valid when at least half of the positioned detections
// survive.
//
// With fewer than three positioned detections the input is returned as is
// and reported valid. Detections without a position always pass through.
// Filtered keeps the input order and is always a subset of the input.
func VerifyGridPattern(dets []Result, iconSize float64) VerifyResult {
	spatial := 0
	for _, d := range dets {
		if d.HasPosition() {
			spatial++
		}
	}
	passThrough := VerifyResult{IsValid: true, Filtered: append([]Result(nil), dets...)}
	if spatial < minVerifyDetections || iconSize <= 0 {
		return passThrough
	}

	rows, _ := clusterIndices(dets, iconSize*0.5)

	var spacings []float64
	for i := range rows {
		members := rows[i].members
		sort.SliceStable(members, func(a, b int) bool {
			return dets[members[a]].Position.X < dets[members[b]].Position.X
		})
		for k := 1; k < len(members); k++ {
			s := dets[members[k]].Position.X - dets[members[k-1]].Position.X
			if s >= duplicateSpacingRatio*iconSize {
				spacings = append(spacings, s)
			}
		}
	}
	mode, ok := FindMode(spacings)
	if !ok {
		return passThrough
	}
	tol := CalculateAdaptiveTolerance(spacings, iconSize)

	keep := make(map[int]bool, spatial)
	for _, row := range rows {
		anchor := rowAnchor(dets, row.members, mode, tol)
		for _, idx := range row.members {
			if FitsGrid(dets[idx].Position.X, anchor, mode, tol) {
				keep[idx] = true
			}
		}
	}

	filtered := make([]Result, 0, len(dets))
	for i, d := range dets {
		if !d.HasPosition() || keep[i] {
			filtered = append(filtered, d)
		}
	}

	ySpacing := mode
	if len(rows) >= 2 {
		centers := make([]float64, len(rows))
		for i, r := range rows {
			centers[i] = r.centerY
		}
		if m, ok := FindMode(adjacentSpacings(centers)); ok {
			ySpacing = m
		}
	}

	return VerifyResult{
		IsValid:  float64(len(keep)) >= 0.5*float64(spatial),
		Filtered: filtered,
		Grid:     &GridParams{XSpacing: mode, YSpacing: ySpacing, Tolerance: tol},
	}
}

// rowAnchor returns the x of the member with the most peers on its grid.
// members must be sorted by x, so ties resolve to the leftmost.
func rowAnchor(dets []Result, members []int, spacing, tol float64) float64 {
	best, bestFits := dets[members[0]].Position.X, -1
	for _, a := range members {
		ax := dets[a].Position.X
		fits := 0
		for _, b := range members {
			if FitsGrid(dets[b].Position.X, ax, spacing, tol) {
				fits++
			}
		}
		if fits > bestFits {
			best, bestFits = ax, fits
		}
	}
	return best
}
