// Package detection implements the geometric and statistical core of hotbar
// icon detection.
//
// Given only the pixels of a game screenshot, it finds the band holding the
// icon row, estimates the on-screen icon size, locates rarity-coloured cell
// borders, infers the grid they form, and provides the post-processing the
// ensemble relies on: grid-pattern verification, IoU-based non-max
// suppression, uncertainty flagging and stack-count sub-regions.
//
// # Pipeline
//
// The components are meant to be chained in this order:
//
//  1. SelectTier: pick three candidate icon sizes from the capture resolution
//  2. RegionDetector.Detect: find the hotbar band
//  3. DetectEdges: vertical rarity borders inside the band
//  4. EstimateIconScale: corroborate the tier with edge spacing
//  5. InferGrid / GridCells: grid spacing and candidate cells
//  6. VerifyGridPattern, NonMaxSuppression, FlagUncertain on strategy output
//  7. CountRegion: where a stack count would be drawn in each cell
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bands use inclusive TopY and exclusive BottomY
//
// # Degrading Instead of Failing
//
// Nothing in this package returns an error for missing evidence. A screenshot
// without a recognisable hotbar yields a fallback band with low confidence,
// fewer than two edges yield the resolution-tier icon size, and degenerate
// boxes have an IoU of 0. Callers read the confidence fields to decide how far
// to trust a result.
//
// # Tuning Data
//
// Rarity border colours (Palette) and resolution tiers (ResolutionTier) are
// empirical values for one game's UI. Both have built-in defaults and can be
// replaced by the caller.
//
// # Thread Safety
//
// All functions are pure over their inputs. A Palette is read-only after
// construction and may be shared between goroutines.
package detection
