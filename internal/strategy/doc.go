// Package strategy holds the independent detectors the ensemble runs.
//
// Every Strategy reads the same immutable Input (pixels, hotbar band, icon
// scale, grid cells, candidate entities) and returns its own, possibly empty,
// possibly overlapping list of detections. Strategies never share mutable
// state; the only shared structure is the TemplateStore, which is safe for
// concurrent use.
//
// Three strategies are provided:
//
//   - template: normalised cross-correlation of each grid cell against every
//     entity template, with a small positional search
//   - color: mean Lab colour of each cell against each template, restricted
//     to entities whose rarity matches the observed border
//   - sliding_window: correlation over a window swept along the whole band,
//     skipping flat windows using Sobel edge density; independent of the
//     inferred grid
package strategy
