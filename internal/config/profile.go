package config

import (
	"fmt"
	"io"
	"os"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"gopkg.in/yaml.v3"
)

// Profile describes one game's UI: the border colour of each rarity and the
// icon sizes to expect at each resolution.
//
// Example:
//
//	rarity_colors:
//	  common: "#33CC33"
//	  legendary: "#FFAA00"
//	max_color_distance: 0.15
//	resolution_tiers:
//	  - {name: 1080p, max_height: 1080, icon_sizes: [40, 45, 50]}
type Profile struct {
	RarityColors     map[string]string `yaml:"rarity_colors"`
	MaxColorDistance float64           `yaml:"max_color_distance"`
	MinSaturation    float64           `yaml:"min_saturation"`
	ResolutionTiers  []TierSpec        `yaml:"resolution_tiers"`
}

// TierSpec is a resolution tier as written in a profile.
type TierSpec struct {
	Name      string `yaml:"name"`
	MaxHeight int    `yaml:"max_height"`
	IconSizes []int  `yaml:"icon_sizes"`
}

// LoadProfile reads a profile file. An empty path yields the empty profile,
// which resolves to the built-in palette and tiers.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()
	p, err := ParseProfile(f)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes a profile, rejecting unknown keys.
func ParseProfile(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Profile
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return nil, err
	}
	return &p, nil
}

// Palette builds the rarity palette. Without colours the default palette
// is used, still honouring the tuning values.
func (p *Profile) Palette() (*detection.Palette, error) {
	hexes := detection.DefaultRarityColors
	if len(p.RarityColors) > 0 {
		hexes = make(map[detection.Rarity]string, len(p.RarityColors))
		for name, hex := range p.RarityColors {
			hexes[detection.Rarity(name)] = hex
		}
	}
	return detection.NewPalette(hexes, p.MaxColorDistance, p.MinSaturation)
}

// Tiers returns the resolution tiers, or the defaults when none are given.
func (p *Profile) Tiers() ([]detection.ResolutionTier, error) {
	if len(p.ResolutionTiers) == 0 {
		return detection.DefaultTiers(), nil
	}
	tiers := make([]detection.ResolutionTier, len(p.ResolutionTiers))
	for i, spec := range p.ResolutionTiers {
		if len(spec.IconSizes) != 3 {
			return nil, fmt.Errorf("tier %q: want 3 icon sizes, got %d", spec.Name, len(spec.IconSizes))
		}
		tiers[i] = detection.ResolutionTier{
			Name:      spec.Name,
			MaxHeight: spec.MaxHeight,
			IconSizes: [3]int{spec.IconSizes[0], spec.IconSizes[1], spec.IconSizes[2]},
		}
	}
	if err := detection.ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}
