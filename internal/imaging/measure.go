package imaging

import "math"

// Stats summarises a sample of values.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // population standard deviation
}

// statsAccumulator keeps running sums so that scanners can measure regions
// without buffering every sample.
type statsAccumulator struct {
	n     int
	sum   float64
	sumSq float64
}

func (a *statsAccumulator) add(v float64) {
	a.n++
	a.sum += v
	a.sumSq += v * v
}

func (a *statsAccumulator) stats() Stats {
	if a.n == 0 {
		return Stats{}
	}
	mean := a.sum / float64(a.n)
	variance := a.sumSq/float64(a.n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return Stats{Count: a.n, Mean: mean, StdDev: math.Sqrt(variance)}
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the sample (n-1) standard deviation of values.
// Fewer than two values have no spread and yield 0.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
