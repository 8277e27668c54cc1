package ensemble

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/detection/detectiontest"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

// stub is a strategy with canned behaviour.
type stub struct {
	id        string
	results   []detection.Result
	err       error
	panicMsg  string
	delay     time.Duration
	ignoreCtx bool
}

func (s stub) ID() string { return s.id }

func (s stub) Detect(ctx context.Context, _ strategy.Input) ([]detection.Result, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return s.results, s.err
}

func box(x float64) *detection.ROI {
	return &detection.ROI{X: x, Y: 1000, Width: 45, Height: 45}
}

func found(id string, conf float64, pos *detection.ROI) detection.Result {
	return detection.Result{
		Type:       "item",
		Entity:     detection.EntityRef{ID: id},
		Confidence: conf,
		Position:   pos,
		Method:     "stub",
	}
}

func run(t *testing.T, in strategy.Input, strategies ...strategy.Strategy) *Bundle {
	t.Helper()
	reg := strategy.NewRegistry(strategies...)
	r := &Runner{Registry: reg, Timeout: time.Second}
	b, err := r.Run(context.Background(), in, reg.IDs(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return b
}

func confidences(b *Bundle) []float64 {
	out := make([]float64, len(b.Detections))
	for i, d := range b.Detections {
		out[i] = d.Confidence
	}
	return out
}

func assertConfidences(t *testing.T, b *Bundle, want ...float64) {
	t.Helper()
	if b == nil {
		t.Fatal("bundle is nil")
	}
	got := confidences(b)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("detection %d: confidence %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRunner_NoStrategies(t *testing.T) {
	r := &Runner{}
	b, err := r.Run(context.Background(), strategy.Input{}, nil, nil)
	if err != nil || b != nil {
		t.Errorf("got %v, %v; want nil, nil", b, err)
	}
}

func TestRunner_UnknownStrategy(t *testing.T) {
	r := &Runner{}
	if _, err := r.Run(context.Background(), strategy.Input{}, []string{"nope"}, nil); !errors.Is(err, strategy.ErrUnknownStrategy) {
		t.Errorf("got %v, want ErrUnknownStrategy", err)
	}
}

func TestRunner_AgreementBoost(t *testing.T) {
	b := run(t, strategy.Input{},
		stub{id: "a", results: []detection.Result{found("item-1", 0.6, box(800))}},
		stub{id: "b", results: []detection.Result{found("item-1", 0.6, box(802))}},
		stub{id: "c", results: []detection.Result{found("item-2", 0.5, box(800))}},
	)
	assertConfidences(t, b, 0.7, 0.7, 0.5)

	if len(b.StrategiesUsed) != 3 || b.StrategiesUsed[0] != "a" || b.StrategiesUsed[2] != "c" {
		t.Errorf("strategies used: %v", b.StrategiesUsed)
	}
	if math.Abs(b.Confidence-1.9/3) > 1e-9 {
		t.Errorf("bundle confidence %v", b.Confidence)
	}
}

func TestRunner_AgreementBoostIsCapped(t *testing.T) {
	var strategies []strategy.Strategy
	for _, id := range []string{"a", "b", "c", "d"} {
		strategies = append(strategies, stub{id: id, results: []detection.Result{found("item-1", 0.5, box(800))}})
	}
	b := run(t, strategy.Input{}, strategies...)
	assertConfidences(t, b, 0.7, 0.7, 0.7, 0.7)
}

func TestRunner_FarApartDoesNotAgree(t *testing.T) {
	b := run(t, strategy.Input{},
		stub{id: "a", results: []detection.Result{found("item-1", 0.6, box(800))}},
		stub{id: "b", results: []detection.Result{found("item-1", 0.6, box(850))}},
	)
	assertConfidences(t, b, 0.6, 0.6)
}

func TestRunner_GeometryLessKeptAndBoosted(t *testing.T) {
	b := run(t, strategy.Input{},
		stub{id: "a", results: []detection.Result{found("item-1", 0.4, nil)}},
		stub{id: "b", results: []detection.Result{found("item-1", 0.6, box(800))}},
	)
	assertConfidences(t, b, 0.45, 0.6)
	if b.Detections[0].HasPosition() {
		t.Error("geometry-less detection gained a position")
	}
}

func TestRunner_IsolatesFailures(t *testing.T) {
	var logs bytes.Buffer
	acc := metrics.NewAccumulator("run")
	reg := strategy.NewRegistry(
		stub{id: "broken", err: errors.New("boom")},
		stub{id: "panicky", panicMsg: "kaboom"},
		stub{id: "fine", results: []detection.Result{found("item-1", 0.8, box(800))}},
	)
	r := &Runner{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	b, err := r.Run(context.Background(), strategy.Input{Metrics: acc}, reg.IDs(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertConfidences(t, b, 0.8)
	if len(b.StrategiesUsed) != 1 || b.StrategiesUsed[0] != "fine" {
		t.Errorf("strategies used: %v", b.StrategiesUsed)
	}
	if b.Failures["broken"] != "boom" || !strings.Contains(b.Failures["panicky"], "kaboom") {
		t.Errorf("failures: %v", b.Failures)
	}

	snap := acc.Snapshot()
	if len(snap.StrategyErrors) != 2 || snap.StrategyCounts["fine"] != 1 {
		t.Errorf("snapshot: errors %v counts %v", snap.StrategyErrors, snap.StrategyCounts)
	}
	if !strings.Contains(logs.String(), "strategy failed") {
		t.Errorf("failure not logged: %s", logs.String())
	}
}

func TestRunner_TimeoutKeepsPartialResults(t *testing.T) {
	reg := strategy.NewRegistry(
		stub{id: "slow", delay: 2 * time.Second, ignoreCtx: true, results: []detection.Result{found("item-9", 0.9, box(900))}},
		stub{id: "fast", results: []detection.Result{found("item-1", 0.8, box(800))}},
	)
	r := &Runner{Registry: reg, Workers: 2, Timeout: 50 * time.Millisecond}

	start := time.Now()
	b, err := r.Run(context.Background(), strategy.Input{}, reg.IDs(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("run took %v despite timeout", elapsed)
	}
	assertConfidences(t, b, 0.8)
	if !strings.Contains(b.Failures["slow"], "deadline exceeded") {
		t.Errorf("failures: %v", b.Failures)
	}
}

func TestRunner_NothingFound(t *testing.T) {
	b := run(t, strategy.Input{}, stub{id: "a"}, stub{id: "b", err: errors.New("boom")})
	if b != nil {
		t.Errorf("got %+v, want nil", b)
	}
}

func TestRunner_Progress(t *testing.T) {
	reg := strategy.NewRegistry(stub{id: "a"}, stub{id: "b"}, stub{id: "c", err: errors.New("boom")})
	r := &Runner{Registry: reg, Workers: 1}

	var mu sync.Mutex
	var updates []Update
	_, err := r.Run(context.Background(), strategy.Input{}, reg.IDs(), func(u Update) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	failed := 0
	for i, u := range updates {
		if u.Completed != i+1 || u.Total != 3 {
			t.Errorf("update %d: %+v", i, u)
		}
		if u.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("got %d failed updates, want 1", failed)
	}
}

func TestMerge_GridBoost(t *testing.T) {
	in := strategy.Input{
		Grid:     detection.GridParams{XSpacing: 50, Tolerance: 9},
		HaveGrid: true,
		Cells:    []detection.ROI{*box(800)},
	}
	got := merge(in, [][]detection.Result{{
		found("on-grid", 0.6, box(850)),
		found("off-grid", 0.6, box(875)),
	}})
	if math.Abs(got[0].Confidence-0.65) > 1e-9 || math.Abs(got[1].Confidence-0.6) > 1e-9 {
		t.Errorf("got %v / %v, want 0.65 / 0.6", got[0].Confidence, got[1].Confidence)
	}

	in.HaveGrid = false
	if got := merge(in, [][]detection.Result{{found("on-grid", 0.6, box(850))}}); math.Abs(got[0].Confidence-0.6) > 1e-9 {
		t.Errorf("guessed grid boosted: %v", got[0].Confidence)
	}
}

func TestMerge_BorderRarity(t *testing.T) {
	hb := detectiontest.Default1080p()
	in := strategy.Input{
		Source:  imaging.NewBuffer(hb.Render()),
		Palette: detection.DefaultPalette(),
	}
	cell := detection.ROIFromRect(hb.Cell(3)) // epic border

	matching := found("epic-item", 0.8, &cell)
	matching.Entity.Rarity = detection.RarityEpic
	wrong := found("legendary-item", 0.8, &cell)
	wrong.Entity.Rarity = detection.RarityLegendary
	unknown := found("plain-item", 0.8, &cell)

	got := merge(in, [][]detection.Result{{matching, wrong, unknown}})
	want := []float64{0.85, 0.56, 0.8}
	for i := range want {
		if math.Abs(got[i].Confidence-want[i]) > 1e-9 {
			t.Errorf("%s: confidence %v, want %v", got[i].Entity.ID, got[i].Confidence, want[i])
		}
	}
}

func TestMerge_Clamps(t *testing.T) {
	got := merge(strategy.Input{}, [][]detection.Result{
		{found("x", 0.95, box(800))},
		{found("x", 0.95, box(800))},
	})
	for _, d := range got {
		if d.Confidence != 1 {
			t.Errorf("confidence %v, want 1", d.Confidence)
		}
	}
}
