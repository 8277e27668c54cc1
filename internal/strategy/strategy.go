package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
)

// Strategy identifiers.
const (
	IDTemplate      = "template"
	IDColor         = "color"
	IDSlidingWindow = "sliding_window"
)

// ErrUnknownStrategy is returned when selecting an id no strategy provides.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Input is everything a strategy may look at. It is shared between
// concurrently running strategies and must not be modified.
type Input struct {
	Source        imaging.PixelSource
	Width, Height int

	Region detection.HotbarRegion
	Scale  detection.IconScaleResult
	Edges  []detection.EdgeMark
	Grid   detection.GridParams
	// HaveGrid is false when Grid is a guess rather than inferred from edges.
	HaveGrid bool
	// Cells are the candidate icon cells, left to right.
	Cells []detection.ROI

	Entities  []detection.Entity
	Palette   *detection.Palette
	Templates *TemplateStore

	// Threshold is the minimum score a candidate needs to be reported.
	Threshold float64

	Metrics metrics.Sink
}

// Strategy is an independent, replaceable detector.
type Strategy interface {
	ID() string
	Detect(ctx context.Context, in Input) ([]detection.Result, error)
}

// Registry maps ids to strategies.
type Registry struct {
	byID  map[string]Strategy
	order []string
}

// NewRegistry creates a registry of the given strategies. Later strategies
// replace earlier ones with the same id.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{byID: make(map[string]Strategy)}
	for _, s := range strategies {
		if _, dup := r.byID[s.ID()]; !dup {
			r.order = append(r.order, s.ID())
		}
		r.byID[s.ID()] = s
	}
	return r
}

// DefaultRegistry returns the built-in strategies.
func DefaultRegistry() *Registry {
	return NewRegistry(TemplateMatch{}, ColorFilter{}, SlidingWindow{})
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Select returns the strategies for ids, in the order given and without
// duplicates.
func (r *Registry) Select(ids []string) ([]Strategy, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]Strategy, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		s, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("%q: %w", id, ErrUnknownStrategy)
		}
		seen[id] = true
		out = append(out, s)
	}
	return out, nil
}

// innerInset is the border width assumed for an icon of the given size.
func innerInset(size int) int {
	b := int(math.Round(float64(size) * 0.067))
	if b < 1 {
		b = 1
	}
	return b
}

// scoredEntity is one entity's score for a candidate location.
type scoredEntity struct {
	entity *detection.Entity
	score  float64
	x, y   int // top-left of the best match, source coordinates
}

// topTwo returns the top two scores, highest first.
func topTwo(scores []scoredEntity) (first, second scoredEntity) {
	sorted := append([]scoredEntity(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })
	if len(sorted) > 0 {
		first = sorted[0]
	}
	if len(sorted) > 1 {
		second = sorted[1]
	}
	return first, second
}

func newResult(e *detection.Entity, conf float64, pos *detection.ROI, method string) detection.Result {
	return detection.Result{
		Type:       e.Type,
		Entity:     e.EntityRef,
		Confidence: math.Max(0, math.Min(1, conf)),
		Position:   pos,
		Method:     method,
	}
}
