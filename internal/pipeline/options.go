package pipeline

import (
	"log/slog"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

// Option configures a Detector.
type Option func(*Detector)

// WithConfig sets the detection configuration.
func WithConfig(cfg detection.Config) Option {
	return func(d *Detector) { d.cfg = cfg }
}

// WithPalette sets the rarity border colours.
func WithPalette(p *detection.Palette) Option {
	return func(d *Detector) { d.palette = p }
}

// WithTiers sets the resolution tier table.
func WithTiers(tiers []detection.ResolutionTier) Option {
	return func(d *Detector) { d.tiers = tiers }
}

// WithRegistry sets the strategies available to runs.
func WithRegistry(r *strategy.Registry) Option {
	return func(d *Detector) { d.registry = r }
}

// WithTemplateStore shares a scaled-template cache between detectors.
func WithTemplateStore(s *strategy.TemplateStore) Option {
	return func(d *Detector) { d.templates = s }
}

// WithWorkers caps how many strategies run concurrently.
func WithWorkers(n int) Option {
	return func(d *Detector) { d.workers = n }
}

// WithEnsembleTimeout bounds the strategy stage of each run.
func WithEnsembleTimeout(t time.Duration) Option {
	return func(d *Detector) { d.ensembleTimeout = t }
}

// WithDecodeTimeout bounds screenshot decoding in DetectImage.
func WithDecodeTimeout(t time.Duration) Option {
	return func(d *Detector) { d.decodeTimeout = t }
}

// WithLogger sets the logger. Runs log through it with a run_id attribute.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithMetrics adds sinks that receive every run's events.
func WithMetrics(sinks ...metrics.Sink) Option {
	return func(d *Detector) { d.sinks = append(d.sinks, sinks...) }
}
