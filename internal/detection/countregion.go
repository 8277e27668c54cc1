package detection

import "math"

// Stack counts are drawn in the bottom-right corner of a cell.
const (
	countWidthRatio  = 0.45
	countHeightRatio = 0.40
)

// CountRegion returns the part of cell likely to hold a stack-count overlay,
// clamped to a width x height image. ok is false when nothing of it lies
// inside the image.
func CountRegion(cell ROI, width, height int) (ROI, bool) {
	w := cell.Width * countWidthRatio
	h := cell.Height * countHeightRatio
	x0 := cell.X + cell.Width - w
	y0 := cell.Y + cell.Height - h
	x1 := x0 + w
	y1 := y0 + h

	x0 = math.Max(x0, 0)
	y0 = math.Max(y0, 0)
	x1 = math.Min(x1, float64(width))
	y1 = math.Min(y1, float64(height))
	if x1 <= x0 || y1 <= y0 {
		return ROI{}, false
	}
	return ROI{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Label: "count"}, true
}

// CountRegions returns the count region for every positioned detection,
// keyed by its index in dets.
func CountRegions(dets []Result, width, height int) map[int]ROI {
	out := make(map[int]ROI)
	for i, d := range dets {
		if !d.HasPosition() {
			continue
		}
		if r, ok := CountRegion(*d.Position, width, height); ok {
			out[i] = r
		}
	}
	return out
}
