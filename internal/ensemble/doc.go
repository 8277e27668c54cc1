// Package ensemble runs several detection strategies over the same hotbar
// and merges what they find.
//
// Strategies run concurrently on a bounded worker pool and are joined, not
// raced: the merge starts once every selected strategy has returned, failed
// or timed out. A strategy that errors, panics or overruns its deadline
// contributes nothing and is logged; the rest of the run is unaffected.
//
// # Merging
//
// All results are kept, duplicates included; de-duplication is left to
// non-max suppression further down the pipeline. Before that, each result's
// confidence is adjusted from the pre-merge values:
//   - +0.10 for each other strategy that reports the same entity at an
//     overlapping position (IoU >= 0.5), at most +0.20
//   - +0.05 for each other strategy reporting the same entity when the
//     result has no position, at most +0.10
//   - +0.05 when the result's centre sits on the inferred grid
//   - +0.05 when the border colour at the result matches the entity's
//     rarity, or x0.7 when it shows a different rarity
//
// Confidences are clamped to [0, 1].
package ensemble
