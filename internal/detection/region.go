package detection

import (
	"image"
	"math"
	"sort"

	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

// Hotbar search tuning.
const (
	// MinRegionConfidence is the score a band needs to be reported instead
	// of the fallback band.
	MinRegionConfidence = 0.3

	// FallbackRegionConfidence is reported with the fallback band.
	FallbackRegionConfidence = 0.1

	varianceWeight = 0.4
	rarityWeight   = 0.6

	// varianceSaturation is the luma standard deviation at which the
	// variance term saturates.
	varianceSaturation = 48.0

	// fallbackCenterRatio places the fallback band centre this far down
	// the screen.
	fallbackCenterRatio = 0.93

	// scanMarginRatio excludes UI chrome at the extreme left and right.
	scanMarginRatio = 0.15

	// expectedSlots is the mark count at which the count term saturates.
	expectedSlots = 6
)

// RegionDetector locates the hotbar band.
type RegionDetector struct {
	Palette *Palette

	// ScanFraction is the lower share of the screen that is searched.
	ScanFraction float64

	// BandHeight is the height of the sliding band; typically a little
	// more than the expected icon size.
	BandHeight int
}

// BandHeightFor returns the scan band height for an expected icon size.
func BandHeightFor(iconSize int) int {
	return iconSize + int(math.Round(float64(iconSize)*0.3))
}

// Detect scans the lower part of the screen for the band that best combines
// luma variance (icons on a panel) with rarity-coloured borders at periodic
// x-positions.
//
// Detect never fails: when no band reaches MinRegionConfidence it returns a
// band of BandHeight centred near the bottom of the screen with
// FallbackRegionConfidence and Fallback set.
func (d RegionDetector) Detect(src imaging.PixelSource, width, height int) HotbarRegion {
	bandH := d.BandHeight
	if bandH <= 0 {
		bandH = BandHeightFor(SelectTier(DefaultTiers(), width, height, "").Middle())
	}
	if bandH > height {
		bandH = height
	}
	fraction := d.ScanFraction
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultScanFraction
	}
	palette := d.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	x0 := int(float64(width) * scanMarginRatio)
	x1 := int(float64(width) * (1 - scanMarginRatio))
	yStart := height - int(math.Round(float64(height)*fraction))
	if yStart < 0 {
		yStart = 0
	}
	yEnd := height - bandH
	step := bandH / 6
	if step < 2 {
		step = 2
	}

	bestTop, bestScore := -1, 0.0
	var bestMarks []bandMark
	for top := yStart; top <= yEnd; top += step {
		stats := imaging.RegionLumaStats(src, image.Rect(x0, top, x1, top+bandH), 3)
		varianceScore := math.Min(1, stats.StdDev/varianceSaturation)

		rows := []int{top + bandH/4, top + bandH/2, top + 3*bandH/4}
		marks := scanBorderColumns(src, palette, rows, x0, x1, 2, max(2, bandH/8), bandH/2)
		score := varianceWeight*varianceScore + rarityWeight*rarityScore(marks, len(rows))
		if score > bestScore {
			bestTop, bestScore, bestMarks = top, score, marks
		}
	}

	if bestTop < 0 || bestScore < MinRegionConfidence {
		return fallbackRegion(width, height, bandH)
	}

	region := HotbarRegion{TopY: bestTop, BottomY: bestTop + bandH, Confidence: clamp01(bestScore)}
	return refineBand(src, palette, region, bestMarks, height)
}

func fallbackRegion(width, height, bandH int) HotbarRegion {
	center := int(math.Round(float64(height) * fallbackCenterRatio))
	top := center - bandH/2
	if top+bandH > height {
		top = height - bandH
	}
	if top < 0 {
		top = 0
	}
	return HotbarRegion{
		TopY:       top,
		BottomY:    top + bandH,
		Confidence: FallbackRegionConfidence,
		Fallback:   true,
	}
}

// bandMark is a run of columns that matched a border colour.
type bandMark struct {
	start, end int // inclusive column range
	hits       int // best per-column hit count in the run
	rarity     Rarity
}

func (m bandMark) center() int { return (m.start + m.end) / 2 }

// scanBorderColumns classifies each column in [x0,x1) on rows and groups
// columns with at least minHits matches into marks. Runs separated by at
// most mergeGap columns merge; runs wider than maxRun (horizontal borders or
// large flat areas) are discarded.
func scanBorderColumns(src imaging.PixelSource, palette *Palette, rows []int, x0, x1, minHits, mergeGap, maxRun int) []bandMark {
	var marks []bandMark
	var cur *bandMark
	var curCounts map[Rarity]int
	flush := func() {
		if cur == nil {
			return
		}
		if cur.end-cur.start+1 <= maxRun {
			cur.rarity, _ = dominantRarity(curCounts)
			marks = append(marks, *cur)
		}
		cur, curCounts = nil, nil
	}

	for x := x0; x < x1; x++ {
		hits, rarity := palette.columnRarities(src, x, rows)
		if hits < minHits {
			if cur != nil && x-cur.end > mergeGap {
				flush()
			}
			continue
		}
		if cur == nil {
			cur = &bandMark{start: x, end: x}
			curCounts = make(map[Rarity]int)
		}
		cur.end = x
		if hits > cur.hits {
			cur.hits = hits
		}
		curCounts[rarity]++
	}
	flush()
	return marks
}

// rarityScore rates how much a set of marks looks like a row of bordered
// icons: mark strength times the mean of a count term and a periodicity term.
func rarityScore(marks []bandMark, rows int) float64 {
	if len(marks) == 0 {
		return 0
	}
	var strength float64
	xs := make([]float64, len(marks))
	for i, m := range marks {
		strength += float64(m.hits) / float64(rows)
		xs[i] = float64(m.center())
	}
	strength /= float64(len(marks))

	count := math.Min(1, float64(len(marks))/expectedSlots)

	periodicity := 0.0
	if len(marks) >= 3 {
		spacings := adjacentSpacings(xs)
		if mode, ok := FindMode(spacings); ok {
			near := 0
			for _, s := range spacings {
				if math.Abs(s-mode) <= 0.25*mode {
					near++
				}
			}
			periodicity = float64(near) / float64(len(spacings))
		}
	}

	return strength * (0.5*count + 0.5*periodicity)
}

// refineBand snaps the band to the vertical extent of the borders found in
// it, so that the band centre matches the icon centre. The band is left
// unchanged if the extent cannot be measured.
func refineBand(src imaging.PixelSource, palette *Palette, region HotbarRegion, marks []bandMark, height int) HotbarRegion {
	mid := int(region.CenterY())
	var tops, bottoms []int
	for i, m := range marks {
		if i >= 8 {
			break
		}
		x := m.start
		if _, ok := palette.Classify(src.RGBAAt(x, mid)); !ok {
			continue
		}
		top := mid
		for top > 0 {
			if _, ok := palette.Classify(src.RGBAAt(x, top-1)); !ok {
				break
			}
			top--
		}
		bottom := mid + 1
		for bottom < height {
			if _, ok := palette.Classify(src.RGBAAt(x, bottom)); !ok {
				break
			}
			bottom++
		}
		tops = append(tops, top)
		bottoms = append(bottoms, bottom)
	}
	if len(tops) == 0 {
		return region
	}

	top, bottom := medianInt(tops), medianInt(bottoms)
	extent := bottom - top
	if extent < region.Height()/3 || extent > 2*region.Height() {
		return region
	}
	pad := extent / 10
	if pad < 2 {
		pad = 2
	}
	region.TopY = top - pad
	if region.TopY < 0 {
		region.TopY = 0
	}
	region.BottomY = bottom + pad
	if region.BottomY > height {
		region.BottomY = height
	}
	return region
}

func medianInt(values []int) int {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
