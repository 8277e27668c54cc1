package strategy

import (
	"image"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jtn0123/megabonk-vision/internal/detection"
	"github.com/jtn0123/megabonk-vision/internal/imaging"
	"github.com/jtn0123/megabonk-vision/internal/metrics"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultTemplateCacheSize is the number of scaled templates kept.
const DefaultTemplateCacheSize = 512

// flatVariance is the per-pixel luminance variance below which a template or
// patch is treated as flat.
const flatVariance = 1e-6

// ScaledTemplate is an entity template resampled to one icon size, with the
// statistics correlation needs precomputed.
type ScaledTemplate struct {
	Size int

	luma []float64
	mask []bool
	mean float64
	norm float64 // sqrt of the summed squared deviation over masked pixels
	n    int

	// Color is the mean colour of the opaque pixels; HasColor is false for
	// fully transparent templates.
	Color    colorful.Color
	HasColor bool
}

type templateKey struct {
	id   string
	size int
}

// TemplateStore caches entity templates scaled to the sizes runs ask for.
// It is safe for concurrent use.
type TemplateStore struct {
	cache *lru.Cache[templateKey, *ScaledTemplate]
}

// NewTemplateStore creates a store holding up to capacity scaled templates;
// zero selects DefaultTemplateCacheSize.
func NewTemplateStore(capacity int) (*TemplateStore, error) {
	if capacity <= 0 {
		capacity = DefaultTemplateCacheSize
	}
	cache, err := lru.New[templateKey, *ScaledTemplate](capacity)
	if err != nil {
		return nil, err
	}
	return &TemplateStore{cache: cache}, nil
}

// Len returns the number of cached templates.
func (s *TemplateStore) Len() int { return s.cache.Len() }

// Get returns e's template scaled to size x size, building and caching it on
// a miss. Each lookup is reported to sink. ok is false for entities without
// a template.
func (s *TemplateStore) Get(e *detection.Entity, size int, sink metrics.Sink) (*ScaledTemplate, bool) {
	if e.Template == nil || size <= 0 {
		return nil, false
	}
	key := templateKey{id: e.ID, size: size}
	if t, ok := s.cache.Get(key); ok {
		metrics.OrDiscard(sink).Record(metrics.Event{Kind: metrics.KindCache, Name: "templates", Hit: true})
		return t, true
	}
	metrics.OrDiscard(sink).Record(metrics.Event{Kind: metrics.KindCache, Name: "templates"})

	t := newScaledTemplate(imaging.Resize(e.Template, size, size), size)
	s.cache.Add(key, t)
	return t, true
}

func newScaledTemplate(img image.Image, size int) *ScaledTemplate {
	buf := imaging.NewBuffer(img)
	t := &ScaledTemplate{
		Size: size,
		luma: make([]float64, size*size),
		mask: make([]bool, size*size),
	}

	var sum float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := buf.RGBAAt(x, y)
			if p.A == 0 {
				continue
			}
			i := y*size + x
			t.luma[i] = imaging.Luma(p)
			t.mask[i] = true
			sum += t.luma[i]
			t.n++
		}
	}
	if t.n == 0 {
		return t
	}
	t.mean = sum / float64(t.n)
	var ss float64
	for i, ok := range t.mask {
		if ok {
			d := t.luma[i] - t.mean
			ss += d * d
		}
	}
	// Resampling leaves rounding residue in a solid template; treat a
	// near-zero variance as flat.
	if ss/float64(t.n) >= flatVariance {
		t.norm = math.Sqrt(ss)
	}

	if c, ok := imaging.MeanColor(buf, image.Rect(0, 0, size, size), 1); ok {
		t.Color, t.HasColor = colorful.MakeColor(c)
	}
	return t
}

// lumaPlane is a precomputed luminance view of part of a screenshot.
type lumaPlane struct {
	rect image.Rectangle
	v    []float64
}

func newLumaPlane(src imaging.PixelSource, rect image.Rectangle) *lumaPlane {
	rect = rect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))
	p := &lumaPlane{rect: rect, v: make([]float64, rect.Dx()*rect.Dy())}
	w := rect.Dx()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			p.v[(y-rect.Min.Y)*w+(x-rect.Min.X)] = imaging.Luma(src.RGBAAt(x, y))
		}
	}
	return p
}

func (p *lumaPlane) at(x, y int) float64 {
	if !(image.Point{X: x, Y: y}).In(p.rect) {
		return 0
	}
	return p.v[(y-p.rect.Min.Y)*p.rect.Dx()+(x-p.rect.Min.X)]
}

// correlate returns the normalised cross-correlation of t placed with its
// top-left corner at (x0, y0). Flat templates or flat patches score 0.
func (t *ScaledTemplate) correlate(p *lumaPlane, x0, y0 int) float64 {
	if t.norm == 0 || t.n == 0 {
		return 0
	}
	var sumS float64
	for i, ok := range t.mask {
		if ok {
			sumS += p.at(x0+i%t.Size, y0+i/t.Size)
		}
	}
	n := float64(t.n)
	meanS := sumS / n

	var varS, sumST float64
	for i, ok := range t.mask {
		if !ok {
			continue
		}
		d := p.at(x0+i%t.Size, y0+i/t.Size) - meanS
		varS += d * d
		sumST += d * (t.luma[i] - t.mean)
	}
	if varS/n < flatVariance {
		return 0
	}
	r := sumST / (math.Sqrt(varS) * t.norm)
	return math.Max(-1, math.Min(1, r))
}

// bestShift searches offsets within ±shift of (x0, y0) and returns the best
// correlation and where it was found.
func (t *ScaledTemplate) bestShift(p *lumaPlane, x0, y0, shift int) (score float64, bx, by int) {
	score, bx, by = math.Inf(-1), x0, y0
	for dy := -shift; dy <= shift; dy++ {
		for dx := -shift; dx <= shift; dx++ {
			if c := t.correlate(p, x0+dx, y0+dy); c > score {
				score, bx, by = c, x0+dx, y0+dy
			}
		}
	}
	return score, bx, by
}

// prefetch returns the scaled templates of all entities that have one,
// index-aligned with entities (nil where missing).
func prefetch(in Input, size int) []*ScaledTemplate {
	out := make([]*ScaledTemplate, len(in.Entities))
	if in.Templates == nil {
		return out
	}
	for i := range in.Entities {
		if t, ok := in.Templates.Get(&in.Entities[i], size, in.Metrics); ok {
			out[i] = t
		}
	}
	return out
}
