package detection

import (
	"image"
	"math"

	"github.com/jtn0123/megabonk-vision/internal/imaging"
)

// Scale estimation tuning.
const (
	// minBandStdDev is the luma standard deviation below which the band is
	// treated as featureless and edge evidence is ignored.
	minBandStdDev = 4.0

	// minConsistentShare is the share of edge spacings that must agree with
	// the dominant spacing.
	minConsistentShare = 0.6

	fallbackScaleConfidence = 0.3
)

// EstimateIconScale picks the on-screen icon size.
//
// The resolution tier supplies three candidates; the middle one is the
// fallback. When at least two edges were found, the band is not flat and the
// edge spacings agree with their mode, the size is derived from the mode
// (the cell pitch) times fillRatio and reported as MethodEdgeAnalysis.
// Otherwise the result is the tier's middle size with
// MethodResolutionFallback.
func EstimateIconScale(src imaging.PixelSource, width int, region HotbarRegion, tier ResolutionTier, edges []EdgeMark, fillRatio float64) IconScaleResult {
	if fillRatio <= 0 || fillRatio > 1 {
		fillRatio = DefaultIconFillRatio
	}
	candidates := tier.Candidates()
	fallback := IconScaleResult{
		IconSize:   tier.Middle(),
		Confidence: fallbackScaleConfidence,
		Method:     MethodResolutionFallback,
		Candidates: candidates,
		Tier:       tier.Name,
	}

	if len(edges) < 2 {
		return fallback
	}

	x0 := int(float64(width) * scanMarginRatio)
	x1 := int(float64(width) * (1 - scanMarginRatio))
	band := imaging.RegionLumaStats(src, image.Rect(x0, region.TopY, x1, region.BottomY), 2)
	if band.StdDev < minBandStdDev {
		return fallback
	}

	spacings := adjacentSpacings(markPositions(edges))
	mode, ok := FindMode(spacings)
	if !ok {
		return fallback
	}
	tol := CalculateAdaptiveTolerance(spacings, float64(tier.Middle()))
	consistent := 0
	for _, s := range spacings {
		if math.Abs(s-mode) <= tol {
			consistent++
		}
	}
	share := float64(consistent) / float64(len(spacings))
	if share < minConsistentShare {
		return fallback
	}

	size := int(math.Round(mode * fillRatio))
	lo := 0.5 * float64(candidates[0])
	hi := 1.6 * float64(candidates[2])
	if float64(size) < lo || float64(size) > hi {
		return fallback
	}

	conf := 0.5 + 0.4*share
	if size >= candidates[0] && size <= candidates[2] {
		conf += 0.1
	}
	return IconScaleResult{
		IconSize:   size,
		Confidence: clamp01(conf),
		Method:     MethodEdgeAnalysis,
		Candidates: candidates,
		Tier:       tier.Name,
	}
}
