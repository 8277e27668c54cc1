package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/ensemble"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MEGABONK_VISION"

var (
	// ErrUnknownStrategy is returned for strategy ids no strategy provides.
	ErrUnknownStrategy = strategy.ErrUnknownStrategy

	// ErrInvalidColor is returned for malformed rarity colours.
	ErrInvalidColor = imaging.ErrInvalidColor
)

// Settings are the process-level settings.
type Settings struct {
	Detection DetectionSettings `mapstructure:"detection"`

	Profile     string `mapstructure:"profile"`
	Catalogue   string `mapstructure:"catalogue"`
	TemplateDir string `mapstructure:"template_dir"`

	DebugAddr string `mapstructure:"debug_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogJSON   bool   `mapstructure:"log_json"`
}

// DetectionSettings tune the pipeline.
type DetectionSettings struct {
	DynamicThreshold   float64       `mapstructure:"dynamic_threshold"`
	NMSThreshold       float64       `mapstructure:"nms_threshold"`
	ConfidentThreshold float64       `mapstructure:"confident_threshold"`
	UncertainBand      float64       `mapstructure:"uncertain_band"`
	Strategies         []string      `mapstructure:"strategies"`
	Workers            int           `mapstructure:"workers"`
	EnsembleTimeout    time.Duration `mapstructure:"ensemble_timeout"`
	DecodeTimeout      time.Duration `mapstructure:"decode_timeout"`
	ScanFraction       float64       `mapstructure:"scan_fraction"`
	IconFillRatio      float64       `mapstructure:"icon_fill_ratio"`
	ResolutionTier     string        `mapstructure:"resolution_tier"`
	TemplateCacheSize  int           `mapstructure:"template_cache_size"`
}

// NewViper returns a viper instance with every default registered and
// environment lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	def := detection.DefaultConfig()

	v.SetDefault("detection.dynamic_threshold", def.DynamicThreshold)
	v.SetDefault("detection.nms_threshold", def.NMSThreshold)
	v.SetDefault("detection.confident_threshold", def.Scoring.ConfidentThreshold)
	v.SetDefault("detection.uncertain_band", def.Scoring.UncertainBand)
	v.SetDefault("detection.strategies", def.SelectedStrategies)
	v.SetDefault("detection.workers", runtime.NumCPU())
	v.SetDefault("detection.ensemble_timeout", ensemble.DefaultTimeout)
	v.SetDefault("detection.decode_timeout", imaging.DefaultDecodeTimeout)
	v.SetDefault("detection.scan_fraction", def.ScanFraction)
	v.SetDefault("detection.icon_fill_ratio", def.IconFillRatio)
	v.SetDefault("detection.resolution_tier", "")
	v.SetDefault("detection.template_cache_size", strategy.DefaultTemplateCacheSize)
	v.SetDefault("profile", "")
	v.SetDefault("catalogue", "")
	v.SetDefault("template_dir", "")
	v.SetDefault("debug_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"threshold":           "detection.dynamic_threshold",
	"nms-threshold":       "detection.nms_threshold",
	"confident-threshold": "detection.confident_threshold",
	"uncertain-band":      "detection.uncertain_band",
	"strategies":          "detection.strategies",
	"workers":             "detection.workers",
	"ensemble-timeout":    "detection.ensemble_timeout",
	"decode-timeout":      "detection.decode_timeout",
	"tier":                "detection.resolution_tier",
	"profile":             "profile",
	"catalogue":           "catalogue",
	"template-dir":        "template_dir",
	"debug-addr":          "debug_addr",
	"log-level":           "log_level",
	"log-json":            "log_json",
}

// RegisterFlags defines the settings flags on fs. Defaults shown in help
// come from NewViper; a flag only overrides the other sources when set.
func RegisterFlags(fs *pflag.FlagSet) {
	def := detection.DefaultConfig()
	fs.Float64("threshold", def.DynamicThreshold, "minimum strategy match score")
	fs.Float64("nms-threshold", def.NMSThreshold, "IoU above which overlapping detections are suppressed")
	fs.Float64("confident-threshold", def.Scoring.ConfidentThreshold, "confidence at or above which a detection is accepted")
	fs.Float64("uncertain-band", def.Scoring.UncertainBand, "width of the band below the cutoff flagged for confirmation")
	fs.StringSlice("strategies", def.SelectedStrategies, "detection strategies to run")
	fs.Int("workers", runtime.NumCPU(), "strategies run concurrently")
	fs.Duration("ensemble-timeout", ensemble.DefaultTimeout, "time limit for the strategy stage")
	fs.Duration("decode-timeout", imaging.DefaultDecodeTimeout, "time limit for decoding the screenshot")
	fs.String("tier", "", "force a resolution tier by name")
	fs.String("profile", "", "UI profile YAML (rarity colours, resolution tiers)")
	fs.String("catalogue", "", "entity catalogue YAML or JSON")
	fs.String("template-dir", "", "directory catalogue image paths are relative to")
	fs.String("debug-addr", "", "serve /events and /metrics on this address")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Bool("log-json", false, "log as JSON instead of text")
}

// BindFlags binds the flags defined by RegisterFlags to their keys.
// Flags missing from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional settings file at path into v and decodes the
// merged settings.
func Load(v *viper.Viper, path string) (Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// DetectionConfig converts the settings into a per-run configuration.
func (s Settings) DetectionConfig() detection.Config {
	d := s.Detection
	return detection.Config{
		DynamicThreshold:   d.DynamicThreshold,
		ResolutionTier:     d.ResolutionTier,
		SelectedStrategies: append([]string(nil), d.Strategies...),
		Scoring: detection.ScoringConfig{
			ConfidentThreshold: d.ConfidentThreshold,
			UncertainBand:      d.UncertainBand,
		},
		NMSThreshold:  d.NMSThreshold,
		ScanFraction:  d.ScanFraction,
		IconFillRatio: d.IconFillRatio,
	}
}

// Validate checks ranges and strategy ids.
func (s Settings) Validate() error {
	var errs []error
	if err := s.DetectionConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := strategy.DefaultRegistry().Select(s.Detection.Strategies); err != nil {
		errs = append(errs, err)
	}
	if s.Detection.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", s.Detection.Workers))
	}
	if s.Detection.EnsembleTimeout <= 0 || s.Detection.DecodeTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", s.LogLevel))
	}
	return errors.Join(errs...)
}
