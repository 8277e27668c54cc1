package detection

import (
	"fmt"
	"image"
	"math"
)

// ROI is an axis-aligned pixel rectangle. Width and Height are never negative
// for rectangles produced by this package; callers constructing their own
// should keep them so, although IoU treats a degenerate box as empty.
type ROI struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Label  string  `json:"label,omitempty"`
}

// ROIFromRect converts an integer rectangle into an ROI.
func ROIFromRect(r image.Rectangle) ROI {
	r = r.Canon()
	return ROI{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	}
}

// Area returns Width*Height, or 0 for degenerate boxes.
func (r ROI) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// CenterX returns the horizontal centre of the box.
func (r ROI) CenterX() float64 { return r.X + r.Width/2 }

// CenterY returns the vertical centre of the box.
func (r ROI) CenterY() float64 { return r.Y + r.Height/2 }

// Rect rounds the box to integer pixel coordinates.
func (r ROI) Rect() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.Width)), y0+int(math.Round(r.Height)))
}

// HotbarRegion is the horizontal band believed to contain the icon row(s).
// TopY is inclusive and BottomY exclusive.
type HotbarRegion struct {
	TopY       int     `json:"top_y"`
	BottomY    int     `json:"bottom_y"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

// Height returns the band height in pixels.
func (h HotbarRegion) Height() int { return h.BottomY - h.TopY }

// CenterY returns the vertical centre of the band.
func (h HotbarRegion) CenterY() float64 { return float64(h.TopY+h.BottomY) / 2 }

// EdgeMark is an x-coordinate where a rarity-coloured vertical border was
// found inside the hotbar band.
type EdgeMark struct {
	X      int    `json:"x"`
	Rarity Rarity `json:"rarity"`
}

// GridParams describes an inferred icon grid. Tolerance is the allowed
// deviation from a grid line, already clamped to the icon size.
type GridParams struct {
	XSpacing  float64 `json:"x_spacing"`
	YSpacing  float64 `json:"y_spacing"`
	Tolerance float64 `json:"tolerance"`
}

// EntityRef identifies the game entity a detection claims to show.
type EntityRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity,omitempty"`
}

// Entity is a candidate the strategies may recognise. Template is the
// normalised icon art; entities without one can only be found by strategies
// that do not need it.
type Entity struct {
	EntityRef
	Type     string      `json:"type"`
	Template image.Image `json:"-"`
}

// Result is a single detection. Position is nil for detections that have no
// geometry (band-level presence results); such detections are carried
// through every stage and never dropped for lacking a box.
type Result struct {
	Type              string    `json:"type"`
	Entity            EntityRef `json:"entity"`
	Confidence        float64   `json:"confidence"`
	Position          *ROI      `json:"position,omitempty"`
	Method            string    `json:"method"`
	NeedsConfirmation bool      `json:"needs_confirmation,omitempty"`
}

// HasPosition reports whether the detection carries geometry.
func (r Result) HasPosition() bool { return r.Position != nil }

// Scale estimation methods.
const (
	MethodEdgeAnalysis       = "edge_analysis"
	MethodResolutionFallback = "resolution_fallback"
)

// IconScaleResult is the estimated on-screen icon size.
type IconScaleResult struct {
	IconSize   int     `json:"icon_size"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Candidates []int   `json:"candidates"`
	Tier       string  `json:"tier"`
}

// ScoringConfig controls how final detections are partitioned.
type ScoringConfig struct {
	// ConfidentThreshold is the cutoff at or above which a detection is
	// accepted without confirmation.
	ConfidentThreshold float64 `json:"confident_threshold" yaml:"confident_threshold"`

	// UncertainBand is the width of the band below the cutoff whose
	// detections are kept but flagged for confirmation.
	UncertainBand float64 `json:"uncertain_band" yaml:"uncertain_band"`
}

// Config is the per-run detection configuration.
type Config struct {
	// DynamicThreshold is the minimum match score a strategy needs before
	// it reports a candidate.
	DynamicThreshold float64 `json:"dynamic_threshold"`

	// ResolutionTier forces a tier by name; empty selects by image size.
	ResolutionTier string `json:"resolution_tier,omitempty"`

	// SelectedStrategies lists the strategy ids to run.
	SelectedStrategies []string `json:"selected_strategies"`

	Scoring ScoringConfig `json:"scoring"`

	// NMSThreshold is the IoU above which overlapping boxes are suppressed.
	NMSThreshold float64 `json:"nms_threshold"`

	// ScanFraction is the lower fraction of the screen searched for the
	// hotbar.
	ScanFraction float64 `json:"scan_fraction"`

	// IconFillRatio is the share of the cell pitch taken by the icon.
	IconFillRatio float64 `json:"icon_fill_ratio"`
}

// Defaults used by DefaultConfig.
const (
	DefaultDynamicThreshold   = 0.55
	DefaultConfidentThreshold = 0.7
	DefaultUncertainBand      = 0.2
	DefaultScanFraction       = 0.35
	DefaultIconFillRatio      = 0.9
)

// DefaultConfig returns the configuration used when the caller supplies none.
func DefaultConfig() Config {
	return Config{
		DynamicThreshold:   DefaultDynamicThreshold,
		SelectedStrategies: []string{"template", "color", "sliding_window"},
		Scoring: ScoringConfig{
			ConfidentThreshold: DefaultConfidentThreshold,
			UncertainBand:      DefaultUncertainBand,
		},
		NMSThreshold:  DefaultNMSThreshold,
		ScanFraction:  DefaultScanFraction,
		IconFillRatio: DefaultIconFillRatio,
	}
}

// Validate checks that every ratio lies in its allowed range.
func (c Config) Validate() error {
	checks := []struct {
		name     string
		value    float64
		closedHi bool // 1 itself is allowed
	}{
		{"dynamic_threshold", c.DynamicThreshold, false},
		{"nms_threshold", c.NMSThreshold, false},
		{"confident_threshold", c.Scoring.ConfidentThreshold, false},
		{"scan_fraction", c.ScanFraction, true},
		{"icon_fill_ratio", c.IconFillRatio, true},
	}
	for _, chk := range checks {
		if chk.value <= 0 || chk.value > 1 || (chk.value == 1 && !chk.closedHi) {
			return fmt.Errorf("%s must be in (0,1), got %v", chk.name, chk.value)
		}
	}
	if c.Scoring.UncertainBand < 0 || c.Scoring.UncertainBand >= c.Scoring.ConfidentThreshold {
		return fmt.Errorf("uncertain_band must be in [0,confident_threshold), got %v", c.Scoring.UncertainBand)
	}
	return nil
}
