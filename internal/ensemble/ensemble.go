package ensemble

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	"github.com/jtn0123/megabonk-vision/internal/strategy"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Merge tuning.
const (
	AgreementIoU       = 0.5
	agreementBoost     = 0.10
	maxAgreementBoost  = 0.20
	presenceBoost      = 0.05
	maxPresenceBoost   = 0.10
	gridBoost          = 0.05
	rarityMatchBoost   = 0.05
	rarityMismatchRate = 0.7
)

// DefaultTimeout bounds a whole ensemble run.
const DefaultTimeout = 10 * time.Second

// Bundle is the merged output of an ensemble run.
type Bundle struct {
	Detections []detection.Result `json:"detections"`
	// Confidence is the mean confidence of Detections.
	Confidence float64 `json:"confidence"`
	// StrategiesUsed lists the strategies that completed, in selection order.
	StrategiesUsed []string `json:"strategies_used"`
	// Failures maps strategies that errored or timed out to their error.
	Failures map[string]string `json:"failures,omitempty"`
}

// Progress reports a finished strategy. Calls are serialised.
type Progress func(p Update)

// Update describes one finished strategy.
type Update struct {
	Strategy  string
	Completed int
	Total     int
	Err       error
}

// Runner executes strategies. The zero value uses the default registry,
// one worker per CPU and DefaultTimeout.
type Runner struct {
	Registry *strategy.Registry
	// Workers caps how many strategies run at once.
	Workers int
	// Timeout bounds the whole run; strategies still running when it
	// expires are abandoned.
	Timeout time.Duration
	Logger  *slog.Logger
}

type outcome struct {
	index    int
	id       string
	results  []detection.Result
	err      error
	duration time.Duration
}

// Run executes the strategies named by ids against in and merges their
// results.
//
// It returns nil when no strategy is selected or when no strategy produced
// any detection. The only error is an unknown strategy id; strategy
// failures are reported in Bundle.Failures.
func (r *Runner) Run(ctx context.Context, in strategy.Input, ids []string, progress Progress) (*Bundle, error) {
	registry := r.Registry
	if registry == nil {
		registry = strategy.DefaultRegistry()
	}
	selected, err := registry.Select(ids)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	sink := metrics.OrDiscard(in.Metrics)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	completed := 0
	p := pool.NewWithResults[outcome]().WithMaxGoroutines(workers)
	for i, s := range selected {
		p.Go(func() outcome {
			o := runOne(ctx, s, in)
			o.index = i

			sink.Record(metrics.Event{
				Kind:     metrics.KindStrategy,
				Name:     o.id,
				Duration: o.duration,
				Count:    len(o.results),
				Err:      errString(o.err),
			})
			if o.err != nil {
				logger.Warn("strategy failed", "strategy", o.id, "err", o.err, "duration", o.duration)
			} else {
				logger.Debug("strategy finished", "strategy", o.id, "detections", len(o.results), "duration", o.duration)
			}

			if progress != nil {
				mu.Lock()
				completed++
				progress(Update{Strategy: o.id, Completed: completed, Total: len(selected), Err: o.err})
				mu.Unlock()
			}
			return o
		})
	}
	outcomes := make([]outcome, len(selected))
	for _, o := range p.Wait() {
		outcomes[o.index] = o
	}

	bundle := &Bundle{}
	var perStrategy [][]detection.Result
	for _, o := range outcomes {
		if o.err != nil {
			if bundle.Failures == nil {
				bundle.Failures = make(map[string]string)
			}
			bundle.Failures[o.id] = o.err.Error()
			continue
		}
		bundle.StrategiesUsed = append(bundle.StrategiesUsed, o.id)
		perStrategy = append(perStrategy, o.results)
	}

	bundle.Detections = merge(in, perStrategy)
	if len(bundle.Detections) == 0 {
		return nil, nil
	}
	var sum float64
	for _, d := range bundle.Detections {
		sum += d.Confidence
	}
	bundle.Confidence = sum / float64(len(bundle.Detections))
	return bundle, nil
}

// runOne runs s, converting panics into errors and giving up when ctx
// ends even if s ignores it.
func runOne(ctx context.Context, s strategy.Strategy, in strategy.Input) outcome {
	start := time.Now()
	o := outcome{id: s.ID()}

	done := make(chan outcome, 1)
	go func() {
		var res outcome
		recovered := panics.Try(func() {
			res.results, res.err = s.Detect(ctx, in)
		})
		if err := recovered.AsError(); err != nil {
			res.results, res.err = nil, err
		}
		done <- res
	}()

	select {
	case res := <-done:
		o.results, o.err = res.results, res.err
	case <-ctx.Done():
		o.err = ctx.Err()
	}
	if o.err != nil {
		o.results = nil
	}
	o.duration = time.Since(start)
	return o
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
