package detection

import (
	"fmt"
	"image/color"

	"github.com/jtn0123/megabonk-vision/internal/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Rarity is the colour class of an icon border.
type Rarity string

// Known rarities, lowest first.
const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityUnknown   Rarity = ""
)

// Rarities lists the known rarities in a fixed order. Classification and
// tie-breaking iterate in this order.
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// Valid reports whether r is one of the known rarities.
func (r Rarity) Valid() bool {
	for _, k := range Rarities {
		if r == k {
			return true
		}
	}
	return false
}

// Default palette tuning.
const (
	DefaultMaxColorDistance = 0.15
	DefaultMinSaturation    = 0.35
	minBorderValue          = 0.25
)

// DefaultRarityColors maps each rarity to its border colour.
var DefaultRarityColors = map[Rarity]string{
	RarityCommon:    "#33CC33",
	RarityUncommon:  "#3399FF",
	RarityRare:      "#9933FF",
	RarityEpic:      "#FF3333",
	RarityLegendary: "#FFAA00",
}

// Palette classifies pixels into rarity border colours.
//
// A pixel matches a rarity when it is saturated and bright enough to be a
// border (HSV gate) and its CIE Lab distance to the rarity colour is within
// MaxDistance. The nearest matching rarity wins.
type Palette struct {
	colors        map[Rarity]colorful.Color
	rgba          map[Rarity]color.RGBA
	MaxDistance   float64
	MinSaturation float64
}

// NewPalette builds a palette from rarity → hex colour. Zero tuning values
// select the defaults.
func NewPalette(hexes map[Rarity]string, maxDistance, minSaturation float64) (*Palette, error) {
	if len(hexes) == 0 {
		return nil, fmt.Errorf("palette has no colors")
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxColorDistance
	}
	if minSaturation <= 0 {
		minSaturation = DefaultMinSaturation
	}
	p := &Palette{
		colors:        make(map[Rarity]colorful.Color, len(hexes)),
		rgba:          make(map[Rarity]color.RGBA, len(hexes)),
		MaxDistance:   maxDistance,
		MinSaturation: minSaturation,
	}
	for r, hex := range hexes {
		if !r.Valid() {
			return nil, fmt.Errorf("unknown rarity %q", r)
		}
		c, err := imaging.ParseHexColor(hex)
		if err != nil {
			return nil, fmt.Errorf("rarity %s: %w", r, err)
		}
		p.rgba[r] = c
		p.colors[r] = toColorful(c)
	}
	return p, nil
}

// DefaultPalette returns the built-in border palette.
func DefaultPalette() *Palette {
	p, err := NewPalette(DefaultRarityColors, 0, 0)
	if err != nil {
		panic(err)
	}
	return p
}

// Color returns the RGBA border colour of r.
func (p *Palette) Color(r Rarity) (color.RGBA, bool) {
	c, ok := p.rgba[r]
	return c, ok
}

// Classify returns the rarity whose border colour c matches, if any.
func (p *Palette) Classify(c color.RGBA) (Rarity, bool) {
	if c.A == 0 {
		return RarityUnknown, false
	}
	cf := toColorful(c)
	_, s, v := cf.Hsv()
	if s < p.MinSaturation || v < minBorderValue {
		return RarityUnknown, false
	}

	best := RarityUnknown
	bestDist := p.MaxDistance
	for _, r := range Rarities {
		ref, ok := p.colors[r]
		if !ok {
			continue
		}
		if d := cf.DistanceLab(ref); d <= bestDist {
			best, bestDist = r, d
		}
	}
	return best, best != RarityUnknown
}

// BorderRarity samples a ring of pixels straddling the edges of box and
// returns the dominant rarity colour found there.
//
// The ring extends a few pixels inside and outside the box so that a cell
// estimate a couple of pixels off still covers the drawn border. ok is false
// when too few ring pixels classify as any rarity.
func (p *Palette) BorderRarity(src imaging.PixelSource, box ROI) (Rarity, bool) {
	r := box.Rect()
	if r.Dx() < 4 || r.Dy() < 4 {
		return RarityUnknown, false
	}
	const reach = 3

	counts := make(map[Rarity]int)
	samples := 0
	sample := func(x, y int) {
		samples++
		if rar, ok := p.Classify(src.RGBAAt(x, y)); ok {
			counts[rar]++
		}
	}

	for d := -reach; d <= reach; d++ {
		for x := r.Min.X; x < r.Max.X; x += 2 {
			sample(x, r.Min.Y+d)
			sample(x, r.Max.Y-1+d)
		}
		for y := r.Min.Y; y < r.Max.Y; y += 2 {
			sample(r.Min.X+d, y)
			sample(r.Max.X-1+d, y)
		}
	}

	best, bestCount := dominantRarity(counts)
	if samples == 0 || float64(bestCount) < 0.15*float64(samples) {
		return RarityUnknown, false
	}
	return best, true
}

// dominantRarity returns the most frequent rarity; ties go to the earlier
// entry of Rarities.
func dominantRarity(counts map[Rarity]int) (Rarity, int) {
	best, bestCount := RarityUnknown, 0
	for _, r := range Rarities {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best, bestCount
}

// columnRarities classifies column x on each of rows and returns the number
// of hits and the dominant rarity among them.
func (p *Palette) columnRarities(src imaging.PixelSource, x int, rows []int) (int, Rarity) {
	counts := make(map[Rarity]int, 2)
	hits := 0
	for _, y := range rows {
		if r, ok := p.Classify(src.RGBAAt(x, y)); ok {
			counts[r]++
			hits++
		}
	}
	if hits == 0 {
		return 0, RarityUnknown
	}
	r, _ := dominantRarity(counts)
	return hits, r
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}
