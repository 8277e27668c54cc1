package detection

import (
	"math"
	"testing"
)

func positioned(x, y, size, conf float64) Result {
	return Result{
		Type:       "item",
		Entity:     EntityRef{ID: "e"},
		Confidence: conf,
		Position:   &ROI{X: x, Y: y, Width: size, Height: size},
		Method:     "test",
	}
}

func unpositioned(id string, conf float64) Result {
	return Result{Type: "item", Entity: EntityRef{ID: id}, Confidence: conf, Method: "test"}
}

func TestFindMode(t *testing.T) {
	tests := []struct {
		name     string
		spacings []float64
		want     float64
		wantOK   bool
	}{
		{"single bucket", []float64{50, 50, 50, 25}, 50, true},
		{"bucket mean", []float64{48, 50, 52}, 50, true},
		{"tie goes to smaller", []float64{60, 60, 40, 40}, 40, true},
		{"ignores non-positive", []float64{0, -5, 30}, 30, true},
		{"empty", nil, 0, false},
		{"only non-positive", []float64{0, -1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindMode(tt.spacings)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("mode: got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCalculateAdaptiveTolerance(t *testing.T) {
	const icon = 48.0

	tests := []struct {
		name     string
		spacings []float64
		want     float64
	}{
		{"few samples use base ratio", []float64{50, 50}, 0.20 * icon},
		{"zero variance clamps to minimum", []float64{50, 50, 50, 50}, 0.15 * icon},
		{"high variance clamps to maximum", []float64{10, 90, 10, 90}, 0.35 * icon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAdaptiveTolerance(tt.spacings, icon)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCalculateAdaptiveTolerance_AlwaysClamped(t *testing.T) {
	inputs := [][]float64{
		nil,
		{1},
		{50, 51, 49, 50, 50},
		{5, 500, 5, 500, 5},
		{48, 48, 48, 48, 48, 48, 48},
	}
	for _, size := range []float64{16, 45, 80} {
		for _, in := range inputs {
			got := CalculateAdaptiveTolerance(in, size)
			if got < 0.15*size-1e-9 || got > 0.35*size+1e-9 {
				t.Errorf("size %v spacings %v: tolerance %f outside [%f, %f]", size, in, got, 0.15*size, 0.35*size)
			}
		}
	}
}

func TestFitsGrid(t *testing.T) {
	tests := []struct {
		value, start, spacing, tol float64
		want                       bool
	}{
		{100, 0, 50, 5, true},
		{110, 0, 50, 5, false},
		{47, 0, 50, 5, true},   // just below the next line
		{-48, 0, 50, 5, true},  // negative offsets wrap
		{125, 0, 50, 5, false}, // halfway
		{123, 23, 50, 0, true},
		{12345, 0, 0, 1, true}, // degenerate spacing
		{7, 0, -10, 1, true},
	}
	for _, tt := range tests {
		if got := FitsGrid(tt.value, tt.start, tt.spacing, tt.tol); got != tt.want {
			t.Errorf("FitsGrid(%v, %v, %v, %v): got %v, want %v", tt.value, tt.start, tt.spacing, tt.tol, got, tt.want)
		}
	}
}

func TestClusterByY(t *testing.T) {
	dets := []Result{
		positioned(10, 100, 40, 0.9),
		positioned(60, 200, 40, 0.9),
		unpositioned("band", 0.5),
		positioned(110, 103, 40, 0.9),
		positioned(160, 98, 40, 0.9),
	}

	rows, unplaced := ClusterByY(dets, 10)
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	if len(rows[0]) != 3 || len(rows[1]) != 1 {
		t.Errorf("row sizes: got %d and %d, want 3 and 1", len(rows[0]), len(rows[1]))
	}
	if rows[1][0].Position.Y != 200 {
		t.Errorf("second row should hold y=200, got %v", rows[1][0].Position.Y)
	}
	if len(unplaced) != 1 || unplaced[0].Entity.ID != "band" {
		t.Errorf("unplaced: got %+v", unplaced)
	}
}

func TestClusterByY_Empty(t *testing.T) {
	rows, unplaced := ClusterByY(nil, 10)
	if len(rows) != 0 || len(unplaced) != 0 {
		t.Errorf("got %d rows and %d unplaced, want none", len(rows), len(unplaced))
	}
}

func TestSortRowMajor(t *testing.T) {
	dets := []Result{
		positioned(10, 200, 40, 0.1),
		unpositioned("first", 0.5),
		positioned(300, 100, 40, 0.2),
		positioned(100, 102, 40, 0.3),
		unpositioned("second", 0.5),
	}

	got := SortRowMajor(dets, 20)
	want := []float64{0.3, 0.2, 0.1}
	for i, c := range want {
		if got[i].Confidence != c {
			t.Errorf("position %d: got confidence %v, want %v", i, got[i].Confidence, c)
		}
	}
	if got[3].Entity.ID != "first" || got[4].Entity.ID != "second" {
		t.Errorf("unpositioned detections out of order: %q, %q", got[3].Entity.ID, got[4].Entity.ID)
	}
}

func sampleEdges() []EdgeMark {
	xs := []int{801, 847, 897, 947, 997, 1047, 1093}
	marks := make([]EdgeMark, len(xs))
	for i, x := range xs {
		marks[i] = EdgeMark{X: x, Rarity: RarityCommon}
	}
	return marks
}

func TestInferGrid(t *testing.T) {
	grid, ok := InferGrid(sampleEdges(), 45)
	if !ok {
		t.Fatal("InferGrid found no grid")
	}
	if grid.XSpacing != 50 {
		t.Errorf("XSpacing: got %v, want 50", grid.XSpacing)
	}
	if math.Abs(grid.Tolerance-0.15*45) > 1e-9 {
		t.Errorf("Tolerance: got %v, want %v", grid.Tolerance, 0.15*45)
	}

	if _, ok := InferGrid([]EdgeMark{{X: 10}}, 45); ok {
		t.Error("single edge should not yield a grid")
	}
}

func TestGridCells(t *testing.T) {
	grid, ok := InferGrid(sampleEdges(), 45)
	region := HotbarRegion{TopY: 996, BottomY: 1049}

	cells := GridCells(grid, ok, sampleEdges(), region, 45, 1920)
	if len(cells) != 6 {
		t.Fatalf("cells: got %d, want 6", len(cells))
	}
	if math.Abs(cells[0].CenterX()-824) > 1e-9 {
		t.Errorf("first cell centre: got %v, want 824", cells[0].CenterX())
	}
	if math.Abs(cells[1].CenterX()-872) > 1e-9 {
		t.Errorf("second cell centre: got %v, want 872", cells[1].CenterX())
	}
	if cells[0].Y != 1000 || cells[0].Width != 45 {
		t.Errorf("first cell: got %+v", cells[0])
	}
	if cells[5].Label != "cell-5" {
		t.Errorf("label: got %q", cells[5].Label)
	}
}

func TestGridCells_SkippedSlot(t *testing.T) {
	edges := []EdgeMark{{X: 100}, {X: 150}, {X: 250}, {X: 300}}
	grid := GridParams{XSpacing: 50, YSpacing: 50, Tolerance: 7}

	cells := GridCells(grid, true, edges, HotbarRegion{TopY: 0, BottomY: 50}, 45, 1000)
	if len(cells) != 4 {
		t.Fatalf("cells: got %d, want 4", len(cells))
	}
	if math.Abs(cells[2].CenterX()-225) > 1e-9 {
		t.Errorf("cell in skipped gap: got centre %v, want 225", cells[2].CenterX())
	}
}

func TestGridCells_Fallback(t *testing.T) {
	cells := GridCells(GridParams{}, false, nil, HotbarRegion{TopY: 1000, BottomY: 1050}, 45, 1920)
	if len(cells) != fallbackSlots {
		t.Fatalf("cells: got %d, want %d", len(cells), fallbackSlots)
	}
	var sum float64
	for _, c := range cells {
		sum += c.CenterX()
	}
	if mean := sum / float64(len(cells)); math.Abs(mean-960) > 1e-6 {
		t.Errorf("fallback row should be centred at 960, got %v", mean)
	}
}
