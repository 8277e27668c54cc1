package detection

import (
	"math"
	"testing"
)

func TestCountRegion(t *testing.T) {
	got, ok := CountRegion(ROI{X: 100, Y: 100, Width: 40, Height: 40}, 1920, 1080)
	if !ok {
		t.Fatal("CountRegion reported no region")
	}
	want := ROI{X: 122, Y: 124, Width: 18, Height: 16, Label: "count"}
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 ||
		math.Abs(got.Width-want.Width) > 1e-9 || math.Abs(got.Height-want.Height) > 1e-9 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCountRegion_Clamped(t *testing.T) {
	got, ok := CountRegion(ROI{X: 190, Y: 190, Width: 20, Height: 20}, 205, 205)
	if !ok {
		t.Fatal("partly visible cell should have a count region")
	}
	if got.X+got.Width > 205 || got.Y+got.Height > 205 {
		t.Errorf("region %+v exceeds image", got)
	}

	if _, ok := CountRegion(ROI{X: 300, Y: 300, Width: 20, Height: 20}, 205, 205); ok {
		t.Error("cell outside the image should have no count region")
	}
}

func TestCountRegions(t *testing.T) {
	dets := []Result{
		positioned(0, 0, 40, 0.9),
		unpositioned("band", 0.5),
		positioned(50, 0, 40, 0.9),
	}
	got := CountRegions(dets, 200, 200)
	if len(got) != 2 {
		t.Fatalf("got %d regions, want 2", len(got))
	}
	if _, ok := got[1]; ok {
		t.Error("detection without position should have no count region")
	}
	if _, ok := got[2]; !ok {
		t.Error("missing region for index 2")
	}
}
