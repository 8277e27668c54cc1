package detection

// Flagged partitions a detection list by confidence.
type Flagged struct {
	// Accepted holds the confident and uncertain detections in input order.
	Accepted  []Result `json:"accepted"`
	Confident []Result `json:"confident"`
	Uncertain []Result `json:"uncertain"`
	Rejected  []Result `json:"rejected"`
}

// FlagUncertain partitions dets by confidence.
//
// Detections at or above ConfidentThreshold are confident. Detections in
// [ConfidentThreshold-UncertainBand, ConfidentThreshold) are uncertain and
// get NeedsConfirmation set. Anything lower is rejected.
func FlagUncertain(dets []Result, cfg ScoringConfig) Flagged {
	var f Flagged
	floor := cfg.ConfidentThreshold - cfg.UncertainBand
	for _, d := range dets {
		switch {
		case d.Confidence >= cfg.ConfidentThreshold:
			d.NeedsConfirmation = false
			f.Confident = append(f.Confident, d)
			f.Accepted = append(f.Accepted, d)
		case d.Confidence >= floor:
			d.NeedsConfirmation = true
			f.Uncertain = append(f.Uncertain, d)
			f.Accepted = append(f.Accepted, d)
		default:
			f.Rejected = append(f.Rejected, d)
		}
	}
	return f
}

// RunConfidence summarises a run: a quarter each from the region and scale
// confidences and half from the mean detection confidence.
func RunConfidence(region HotbarRegion, scale IconScaleResult, dets []Result) float64 {
	conf := 0.25*region.Confidence + 0.25*scale.Confidence
	if len(dets) > 0 {
		var sum float64
		for _, d := range dets {
			sum += d.Confidence
		}
		conf += 0.5 * sum / float64(len(dets))
	}
	return clamp01(conf)
}
