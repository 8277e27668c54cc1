package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"testing"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/detection/detectiontest"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

func hotbarEntities(hb detectiontest.Hotbar) []detection.Entity {
	rarities := []detection.Rarity{
		detection.RarityCommon, detection.RarityUncommon, detection.RarityRare,
		detection.RarityEpic, detection.RarityLegendary, detection.RarityCommon,
	}
	entities := make([]detection.Entity, len(hb.Borders))
	for i := range entities {
		entities[i] = detection.Entity{
			EntityRef: detection.EntityRef{ID: fmt.Sprintf("item-%d", i), Rarity: rarities[i]},
			Type:      "item",
			Template:  detectiontest.IconTemplate(i, imaging.TemplateSize),
		}
	}
	return entities
}

func newDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	d, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDetector_Hotbar(t *testing.T) {
	hb := detectiontest.Default1080p()
	d := newDetector(t)

	report, err := d.Detect(context.Background(), imaging.NewBuffer(hb.Render()), hotbarEntities(hb), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if report.Scale.Method != detection.MethodEdgeAnalysis || report.Scale.IconSize != hb.CellSize {
		t.Errorf("scale: got %+v", report.Scale)
	}
	if report.Region.Fallback {
		t.Errorf("region fell back: %+v", report.Region)
	}
	if !report.HaveGrid || len(report.Cells) != len(hb.Borders) {
		t.Errorf("grid: have=%v cells=%d", report.HaveGrid, len(report.Cells))
	}
	if len(report.Detections) != len(hb.Borders) {
		t.Fatalf("got %d detections, want %d: %+v", len(report.Detections), len(hb.Borders), report.Detections)
	}
	for i, det := range report.Detections {
		if want := fmt.Sprintf("item-%d", i); det.Entity.ID != want {
			t.Errorf("detection %d: got %s, want %s", i, det.Entity.ID, want)
		}
		if iou := detection.IoU(*det.Position, detection.ROIFromRect(hb.Cell(i))); iou < 0.7 {
			t.Errorf("detection %d: IoU %v with drawn cell", i, iou)
		}
		if det.NeedsConfirmation {
			t.Errorf("detection %d flagged uncertain at %v", i, det.Confidence)
		}
	}
	if !report.GridValid {
		t.Error("hotbar detections should form a valid grid")
	}
	if len(report.CountRegions) != len(hb.Borders) {
		t.Errorf("count regions: got %d", len(report.CountRegions))
	}
	if report.Confidence < 0.7 {
		t.Errorf("run confidence %v", report.Confidence)
	}

	snap := report.Metrics
	if snap.RunID != report.RunID || snap.Detections != len(report.Detections) {
		t.Errorf("snapshot: %+v", snap)
	}
	for _, stage := range []string{"region", "edges", "scale", "grid", "ensemble", "verify", "nms", "flag"} {
		if _, ok := snap.StageTimings[stage]; !ok {
			t.Errorf("no timing for stage %s", stage)
		}
	}
	for _, id := range []string{strategy.IDTemplate, strategy.IDColor, strategy.IDSlidingWindow} {
		if _, ok := snap.StrategyTimings[id]; !ok {
			t.Errorf("no timing for strategy %s", id)
		}
	}
	if snap.CacheMisses == 0 {
		t.Error("template cache was never consulted")
	}
}

func TestDetector_UniformScreenshot(t *testing.T) {
	d := newDetector(t)
	src := imaging.NewBuffer(detectiontest.Uniform(1920, 1080, detectiontest.Background))

	report, err := d.Detect(context.Background(), src, hotbarEntities(detectiontest.Default1080p()), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(report.Detections) != 0 {
		t.Errorf("got %d detections on a blank frame", len(report.Detections))
	}
	if !report.Region.Fallback || report.Scale.Method != detection.MethodResolutionFallback {
		t.Errorf("expected fallbacks, got region %+v scale %+v", report.Region, report.Scale)
	}
	if report.Confidence >= 0.5 {
		t.Errorf("confidence %v should be low", report.Confidence)
	}
}

func TestDetector_NoPixels(t *testing.T) {
	d := newDetector(t)
	if _, err := d.Detect(context.Background(), nil, nil, nil); !errors.Is(err, ErrNoPixels) {
		t.Errorf("Detect: got %v, want ErrNoPixels", err)
	}
	if _, err := d.Locate(nil); !errors.Is(err, ErrNoPixels) {
		t.Errorf("Locate: got %v, want ErrNoPixels", err)
	}
}

func TestDetector_NoStrategiesSelected(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.SelectedStrategies = nil
	d := newDetector(t, WithConfig(cfg))
	hb := detectiontest.Default1080p()

	report, err := d.Detect(context.Background(), imaging.NewBuffer(hb.Render()), hotbarEntities(hb), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(report.Detections) != 0 || len(report.StrategiesUsed) != 0 {
		t.Errorf("got %+v", report.Detections)
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := detection.DefaultConfig()
	cfg.DynamicThreshold = 0
	if _, err := New(WithConfig(cfg)); err == nil {
		t.Error("zero threshold should be rejected")
	}

	cfg = detection.DefaultConfig()
	cfg.SelectedStrategies = []string{"template", "ocr"}
	if _, err := New(WithConfig(cfg)); !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Errorf("got %v, want ErrUnknownStrategy", err)
	}

	bad := []detection.ResolutionTier{{Name: "x", MaxHeight: 100, IconSizes: [3]int{30, 20, 10}}}
	if _, err := New(WithTiers(bad)); err == nil {
		t.Error("descending icon sizes should be rejected")
	}
}

func TestDetector_Cancelled(t *testing.T) {
	hb := detectiontest.Default1080p()
	d := newDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Detect(ctx, imaging.NewBuffer(hb.Render()), hotbarEntities(hb), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestDetector_DetectImage(t *testing.T) {
	hb := detectiontest.Default1080p()
	var buf bytes.Buffer
	if err := png.Encode(&buf, hb.Render()); err != nil {
		t.Fatal(err)
	}
	d := newDetector(t, WithConfig(onlyTemplate()))

	report, err := d.DetectImage(context.Background(), &buf, hotbarEntities(hb), nil)
	if err != nil {
		t.Fatalf("DetectImage: %v", err)
	}
	if report.Width != hb.Width || report.Height != hb.Height || len(report.Detections) == 0 {
		t.Errorf("got %dx%d with %d detections", report.Width, report.Height, len(report.Detections))
	}

	_, err = d.DetectImage(context.Background(), bytes.NewReader([]byte("not an image")), nil, nil)
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Errorf("garbage input: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestDetector_MetricsSinkAndLocate(t *testing.T) {
	var mu sync.Mutex
	var events []metrics.Event
	sink := metrics.SinkFunc(func(e metrics.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	hb := detectiontest.Default1080p()
	src := imaging.NewBuffer(hb.Render())
	d := newDetector(t, WithConfig(onlyTemplate()), WithMetrics(sink), WithWorkers(1))

	report, err := d.Detect(context.Background(), src, hotbarEntities(hb), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(report.Metrics.Events) {
		t.Errorf("sink saw %d events, accumulator %d", len(events), len(report.Metrics.Events))
	}
	for _, e := range events {
		if e.RunID != report.RunID {
			t.Fatalf("event run id %q, want %q", e.RunID, report.RunID)
		}
	}

	geo, err := d.Locate(src)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if geo.Scale.IconSize != report.Scale.IconSize || len(geo.Cells) != len(report.Cells) {
		t.Errorf("Locate disagrees with Detect: %+v", geo.Scale)
	}
}

func onlyTemplate() detection.Config {
	cfg := detection.DefaultConfig()
	cfg.SelectedStrategies = []string{strategy.IDTemplate}
	return cfg
}
