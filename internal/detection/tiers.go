package detection

import (
	"fmt"
	"math"
	"sort"
)

// ResolutionTier maps a range of capture heights to three candidate icon
// sizes, smallest first.
type ResolutionTier struct {
	Name      string `json:"name" yaml:"name"`
	MaxHeight int    `json:"max_height" yaml:"max_height"`
	IconSizes [3]int `json:"icon_sizes" yaml:"icon_sizes"`
}

// Middle returns the central candidate size.
func (t ResolutionTier) Middle() int { return t.IconSizes[1] }

// Candidates returns the candidate sizes as a slice.
func (t ResolutionTier) Candidates() []int {
	return []int{t.IconSizes[0], t.IconSizes[1], t.IconSizes[2]}
}

// DefaultTiers returns the built-in resolution tiers, ordered by MaxHeight.
func DefaultTiers() []ResolutionTier {
	return []ResolutionTier{
		{Name: "low", MaxHeight: 800, IconSizes: [3]int{32, 38, 44}},
		{Name: "1080p", MaxHeight: 1080, IconSizes: [3]int{40, 45, 50}},
		{Name: "1440p", MaxHeight: 1440, IconSizes: [3]int{55, 60, 65}},
		{Name: "4k", MaxHeight: 2160, IconSizes: [3]int{70, 80, 90}},
	}
}

// ValidateTiers checks that tiers ascend by MaxHeight and that every tier has
// three ascending positive sizes.
func ValidateTiers(tiers []ResolutionTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("no resolution tiers")
	}
	for i, t := range tiers {
		if t.MaxHeight <= 0 {
			return fmt.Errorf("tier %q: max_height must be positive", t.Name)
		}
		if i > 0 && t.MaxHeight <= tiers[i-1].MaxHeight {
			return fmt.Errorf("tier %q: max_height %d not above previous tier", t.Name, t.MaxHeight)
		}
		s := t.IconSizes
		if s[0] <= 0 || s[0] >= s[1] || s[1] >= s[2] {
			return fmt.Errorf("tier %q: icon sizes %v must be positive and ascending", t.Name, s)
		}
	}
	return nil
}

// Aspect ratios outside this range are treated as ultra-wide or portrait.
const (
	minTierAspect = 1.2
	maxTierAspect = 2.5

	// proportionalIconRatio is icon size over effective 16:9 height.
	proportionalIconRatio = 0.042
	minIconSize           = 16
)

// SelectTier picks the tier for a width x height capture.
//
// A non-empty forced name selects that tier if present. Captures with a
// standard aspect ratio use the first tier whose MaxHeight covers the height.
// Ultra-wide, portrait and oversize captures get a proportional tier derived
// from their effective 16:9 height.
func SelectTier(tiers []ResolutionTier, width, height int, forced string) ResolutionTier {
	if forced != "" {
		for _, t := range tiers {
			if t.Name == forced {
				return t
			}
		}
	}
	if width <= 0 || height <= 0 {
		return proportionalTier("proportional", 1080)
	}

	aspect := float64(width) / float64(height)
	switch {
	case aspect > maxTierAspect:
		return proportionalTier("ultrawide", float64(height))
	case aspect < minTierAspect:
		return proportionalTier("portrait", float64(width)*9/16)
	}

	sorted := append([]ResolutionTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MaxHeight < sorted[j].MaxHeight })
	for _, t := range sorted {
		if height <= t.MaxHeight {
			return t
		}
	}
	return proportionalTier("oversize", float64(height))
}

func proportionalTier(name string, effectiveHeight float64) ResolutionTier {
	base := int(math.Round(effectiveHeight * proportionalIconRatio))
	sizes := [3]int{base - 5, base, base + 5}
	for i := range sizes {
		if floor := minIconSize + 5*i; sizes[i] < floor {
			sizes[i] = floor
		}
	}
	return ResolutionTier{Name: name, MaxHeight: int(effectiveHeight), IconSizes: sizes}
}
