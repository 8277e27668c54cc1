package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/ensemble"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

// ErrNoPixels is returned for a nil or zero-sized pixel source.
var ErrNoPixels = errors.New("no pixel data")

// Detector runs the detection pipeline.
type Detector struct {
	cfg             detection.Config
	palette         *detection.Palette
	tiers           []detection.ResolutionTier
	registry        *strategy.Registry
	templates       *strategy.TemplateStore
	workers         int
	ensembleTimeout time.Duration
	decodeTimeout   time.Duration
	logger          *slog.Logger
	sinks           []metrics.Sink
}

// New creates a Detector. Unset options fall back to detection.DefaultConfig,
// the default palette and tiers, and the built-in strategies.
func New(opts ...Option) (*Detector, error) {
	d := &Detector{
		cfg:             detection.DefaultConfig(),
		ensembleTimeout: ensemble.DefaultTimeout,
		decodeTimeout:   imaging.DefaultDecodeTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	if d.palette == nil {
		d.palette = detection.DefaultPalette()
	}
	if d.tiers == nil {
		d.tiers = detection.DefaultTiers()
	}
	if err := detection.ValidateTiers(d.tiers); err != nil {
		return nil, err
	}
	if d.registry == nil {
		d.registry = strategy.DefaultRegistry()
	}
	if _, err := d.registry.Select(d.cfg.SelectedStrategies); err != nil {
		return nil, err
	}
	if d.templates == nil {
		store, err := strategy.NewTemplateStore(0)
		if err != nil {
			return nil, err
		}
		d.templates = store
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d, nil
}

// Config returns the detection configuration in use.
func (d *Detector) Config() detection.Config { return d.cfg }

// DecodeTimeout returns the bound applied to screenshot decoding.
func (d *Detector) DecodeTimeout() time.Duration { return d.decodeTimeout }

// Palette returns the rarity palette in use.
func (d *Detector) Palette() *detection.Palette { return d.palette }

// Geometry is what the pipeline learns about the hotbar before any entity
// is matched.
type Geometry struct {
	Tier     string                    `json:"tier"`
	Region   detection.HotbarRegion    `json:"region"`
	Edges    []detection.EdgeMark      `json:"edges"`
	Scale    detection.IconScaleResult `json:"scale"`
	Grid     detection.GridParams      `json:"grid"`
	HaveGrid bool                      `json:"have_grid"`
	Cells    []detection.ROI           `json:"cells"`
}

// Report is the result of one run.
type Report struct {
	RunID  string `json:"run_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	Geometry

	// Detections are the confident and uncertain detections, row-major,
	// geometry-less ones last. Uncertain ones have NeedsConfirmation set.
	Detections []detection.Result `json:"detections"`
	// Rejected fell below the uncertainty band.
	Rejected []detection.Result `json:"rejected,omitempty"`
	// CountRegions maps indices of Detections to their stack-count region.
	CountRegions map[int]detection.ROI `json:"count_regions,omitempty"`

	// GridValid is false when the detections did not form a grid; they
	// are then reported unfiltered.
	GridValid bool                  `json:"grid_valid"`
	Verified  *detection.GridParams `json:"verified_grid,omitempty"`

	Confidence       float64           `json:"confidence"`
	StrategiesUsed   []string          `json:"strategies_used"`
	StrategyFailures map[string]string `json:"strategy_failures,omitempty"`

	Metrics metrics.Snapshot `json:"metrics"`
}

// Locate runs the geometric stages only: tier, region, edges, scale and
// grid. It never fails; absent evidence shows up as fallbacks with low
// confidence.
func (d *Detector) Locate(src imaging.PixelSource) (Geometry, error) {
	if !hasPixels(src) {
		return Geometry{}, ErrNoPixels
	}
	return d.locate(src, metrics.Discard), nil
}

func (d *Detector) locate(src imaging.PixelSource, sink metrics.Sink) Geometry {
	w, h := src.Width(), src.Height()
	stage := newStageTimer(sink)

	tier := detection.SelectTier(d.tiers, w, h, d.cfg.ResolutionTier)
	rd := detection.RegionDetector{
		Palette:      d.palette,
		ScanFraction: d.cfg.ScanFraction,
		BandHeight:   detection.BandHeightFor(tier.Middle()),
	}
	region := rd.Detect(src, w, h)
	stage.done("region")

	edges := detection.DetectEdges(src, w, region, d.palette, tier.Middle())
	stage.done("edges")

	scale := detection.EstimateIconScale(src, w, region, tier, edges, d.cfg.IconFillRatio)
	if scale.Method == detection.MethodEdgeAnalysis && scale.IconSize != tier.Middle() {
		// Edge merging depends on the icon size; redo it at the measured one.
		edges = detection.DetectEdges(src, w, region, d.palette, scale.IconSize)
	}
	stage.done("scale")

	grid, haveGrid := detection.InferGrid(edges, scale.IconSize)
	cells := detection.GridCells(grid, haveGrid, edges, region, scale.IconSize, w)
	stage.done("grid")

	return Geometry{
		Tier:     tier.Name,
		Region:   region,
		Edges:    edges,
		Scale:    scale,
		Grid:     grid,
		HaveGrid: haveGrid,
		Cells:    cells,
	}
}

// Detect runs the full pipeline over src, matching against entities.
// progress, if non-nil, is called as each strategy finishes.
func (d *Detector) Detect(ctx context.Context, src imaging.PixelSource, entities []detection.Entity, progress ensemble.Progress) (*Report, error) {
	if !hasPixels(src) {
		return nil, ErrNoPixels
	}
	start := time.Now()
	acc := metrics.NewAccumulator("", d.sinks...)
	logger := d.logger.With("run_id", acc.RunID())

	geo := d.locate(src, acc)
	logger.Debug("hotbar located",
		"tier", geo.Tier,
		"top_y", geo.Region.TopY,
		"bottom_y", geo.Region.BottomY,
		"region_fallback", geo.Region.Fallback,
		"icon_size", geo.Scale.IconSize,
		"scale_method", geo.Scale.Method,
		"edges", len(geo.Edges),
		"cells", len(geo.Cells),
	)

	in := strategy.Input{
		Source:    src,
		Width:     src.Width(),
		Height:    src.Height(),
		Region:    geo.Region,
		Scale:     geo.Scale,
		Edges:     geo.Edges,
		Grid:      geo.Grid,
		HaveGrid:  geo.HaveGrid,
		Cells:     geo.Cells,
		Entities:  entities,
		Palette:   d.palette,
		Templates: d.templates,
		Threshold: d.cfg.DynamicThreshold,
		Metrics:   acc,
	}
	runner := ensemble.Runner{
		Registry: d.registry,
		Workers:  d.workers,
		Timeout:  d.ensembleTimeout,
		Logger:   logger,
	}
	stage := newStageTimer(acc)
	bundle, err := runner.Run(ctx, in, d.cfg.SelectedStrategies, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detection cancelled: %w", err)
	}
	stage.done("ensemble")

	report := &Report{
		RunID:    acc.RunID(),
		Width:    src.Width(),
		Height:   src.Height(),
		Geometry: geo,
	}
	var dets []detection.Result
	if bundle != nil {
		dets = bundle.Detections
		report.StrategiesUsed = bundle.StrategiesUsed
		report.StrategyFailures = bundle.Failures
	}

	iconSize := float64(geo.Scale.IconSize)
	verified := detection.VerifyGridPattern(dets, iconSize)
	report.GridValid = verified.IsValid
	report.Verified = verified.Grid
	if verified.IsValid {
		dets = verified.Filtered
	} else {
		logger.Debug("detections do not form a grid, keeping all", "detections", len(dets))
	}
	stage.done("verify")

	dets = detection.NonMaxSuppression(dets, d.cfg.NMSThreshold)
	stage.done("nms")

	flagged := detection.FlagUncertain(dets, d.cfg.Scoring)
	report.Detections = detection.SortRowMajor(flagged.Accepted, iconSize*0.5)
	report.Rejected = flagged.Rejected
	report.CountRegions = detection.CountRegions(report.Detections, report.Width, report.Height)
	report.Confidence = detection.RunConfidence(geo.Region, geo.Scale, report.Detections)
	stage.done("flag")

	acc.Record(metrics.Event{Kind: metrics.KindDetections, Count: len(report.Detections)})
	report.Metrics = acc.Snapshot()

	logger.Info("detection complete",
		"detections", len(report.Detections),
		"uncertain", len(flagged.Uncertain),
		"rejected", len(flagged.Rejected),
		"confidence", report.Confidence,
		"duration", time.Since(start),
	)
	return report, nil
}

// DetectImage decodes a screenshot from r and runs Detect over it.
func (d *Detector) DetectImage(ctx context.Context, r io.Reader, entities []detection.Entity, progress ensemble.Progress) (*Report, error) {
	img, _, err := imaging.Decode(ctx, r, d.decodeTimeout)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, imaging.NewBuffer(img), entities, progress)
}

func hasPixels(src imaging.PixelSource) bool {
	return src != nil && src.Width() > 0 && src.Height() > 0
}

// stageTimer records the time since the previous stage ended.
type stageTimer struct {
	sink metrics.Sink
	last time.Time
}

func newStageTimer(sink metrics.Sink) *stageTimer {
	return &stageTimer{sink: sink, last: time.Now()}
}

func (s *stageTimer) done(name string) {
	now := time.Now()
	s.sink.Record(metrics.Event{Kind: metrics.KindStage, Name: name, Duration: now.Sub(s.last)})
	s.last = now
}
