package config

import (
	"log/slog"

	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/pipeline"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
)

// NewDetector builds a pipeline.Detector from loaded settings and profile.
// Events of every run are forwarded to sinks.
func NewDetector(s Settings, p *Profile, logger *slog.Logger, sinks ...metrics.Sink) (*pipeline.Detector, error) {
	if p == nil {
		p = &Profile{}
	}
	palette, err := p.Palette()
	if err != nil {
		return nil, err
	}
	tiers, err := p.Tiers()
	if err != nil {
		return nil, err
	}
	store, err := strategy.NewTemplateStore(s.Detection.TemplateCacheSize)
	if err != nil {
		return nil, err
	}
	return pipeline.New(
		pipeline.WithConfig(s.DetectionConfig()),
		pipeline.WithPalette(palette),
		pipeline.WithTiers(tiers),
		pipeline.WithTemplateStore(store),
		pipeline.WithWorkers(s.Detection.Workers),
		pipeline.WithEnsembleTimeout(s.Detection.EnsembleTimeout),
		pipeline.WithDecodeTimeout(s.Detection.DecodeTimeout),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(sinks...),
	)
}
