package detection

import (
	"math"
	"testing"

	"github.com/jtn0123/megabonk-vision/internal/detection/detectiontest"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

func TestRegionDetector_FindsHotbar(t *testing.T) {
	hb := detectiontest.Default1080p()
	src := imaging.NewBuffer(hb.Render())

	d := RegionDetector{Palette: DefaultPalette(), BandHeight: BandHeightFor(45)}
	got := d.Detect(src, hb.Width, hb.Height)

	if got.Fallback {
		t.Fatalf("expected a detected band, got fallback %+v", got)
	}
	if got.Confidence < MinRegionConfidence || got.Confidence > 1 {
		t.Errorf("confidence %v out of range", got.Confidence)
	}
	if got.TopY > hb.TopY || got.BottomY < hb.TopY+hb.CellSize {
		t.Errorf("band %d-%d does not cover icons at %d-%d", got.TopY, got.BottomY, hb.TopY, hb.TopY+hb.CellSize)
	}
	iconCenter := float64(hb.TopY) + float64(hb.CellSize)/2
	if math.Abs(got.CenterY()-iconCenter) > 3 {
		t.Errorf("band centre %v, want near %v", got.CenterY(), iconCenter)
	}
}

func TestRegionDetector_DefaultBandHeight(t *testing.T) {
	hb := detectiontest.Default1080p()
	got := RegionDetector{}.Detect(imaging.NewBuffer(hb.Render()), hb.Width, hb.Height)
	if got.Fallback {
		t.Errorf("zero-value detector should still find the hotbar, got %+v", got)
	}
}

func TestRegionDetector_UniformFallsBack(t *testing.T) {
	src := imaging.NewBuffer(detectiontest.Uniform(1920, 1080, detectiontest.Background))

	got := RegionDetector{}.Detect(src, 1920, 1080)
	if !got.Fallback {
		t.Fatalf("uniform frame should fall back, got %+v", got)
	}
	if got.Confidence != FallbackRegionConfidence {
		t.Errorf("confidence: got %v, want %v", got.Confidence, FallbackRegionConfidence)
	}
	if got.TopY >= got.BottomY || got.BottomY > 1080 || got.TopY < 540 {
		t.Errorf("fallback band %d-%d not near the bottom", got.TopY, got.BottomY)
	}
}

func TestRegionDetector_SmallImage(t *testing.T) {
	src := imaging.NewBuffer(detectiontest.Uniform(30, 20, detectiontest.Background))

	got := RegionDetector{BandHeight: 100}.Detect(src, 30, 20)
	if got.TopY < 0 || got.BottomY > 20 || got.TopY >= got.BottomY {
		t.Errorf("band %d-%d outside a 20px image", got.TopY, got.BottomY)
	}
}
