package detection

import (
	"math"
	"sort"
)

// DefaultNMSThreshold is the IoU above which a lower-confidence box is
// suppressed when the caller does not choose a threshold.
const DefaultNMSThreshold = 0.3

// IoU returns the intersection-over-union of two boxes. Boxes with zero area
// have IoU 0 with everything; identical boxes have IoU exactly 1.
func IoU(a, b ROI) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	if a.X == b.X && a.Y == b.Y && a.Width == b.Width && a.Height == b.Height {
		return 1
	}
	ix := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	iy := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	return inter / (areaA + areaB - inter)
}

// NonMaxSuppression removes overlapping duplicates.
//
// Positioned detections are visited by descending confidence (stable for
// ties); each accepted detection suppresses every later one whose IoU with
// it exceeds threshold. A threshold <= 0 selects DefaultNMSThreshold.
// Detections without a position are never suppressed.
//
// The result lists the accepted positioned detections by descending
// confidence, followed by the detections without a position in input order.
func NonMaxSuppression(dets []Result, threshold float64) []Result {
	if threshold <= 0 {
		threshold = DefaultNMSThreshold
	}

	var spatial, unplaced []Result
	for _, d := range dets {
		if d.HasPosition() {
			spatial = append(spatial, d)
		} else {
			unplaced = append(unplaced, d)
		}
	}
	sort.SliceStable(spatial, func(i, j int) bool {
		return spatial[i].Confidence > spatial[j].Confidence
	})

	out := make([]Result, 0, len(dets))
	suppressed := make([]bool, len(spatial))
	for i := range spatial {
		if suppressed[i] {
			continue
		}
		out = append(out, spatial[i])
		for j := i + 1; j < len(spatial); j++ {
			if !suppressed[j] && IoU(*spatial[i].Position, *spatial[j].Position) > threshold {
				suppressed[j] = true
			}
		}
	}
	return append(out, unplaced...)
}
