package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/parallel"
)

// EdgeMap is a Sobel gradient map over a region of a screenshot with a
// summed-area table of strong-edge pixels, so that edge density of any
// window inside the region is an O(1) query.
//
// The sliding-window strategy uses it to skip empty hotbar slots (flat
// panel background) before spending time on template correlation.
type EdgeMap struct {
	origin    image.Point // top-left of the region in source coordinates
	width     int
	height    int
	integral  []int // (width+1)*(height+1) summed-area table of edge pixels
	threshold uint8
}

// DefaultEdgeThreshold is the Sobel magnitude (0-255) above which a pixel is
// counted as an edge.
const DefaultEdgeThreshold = 60

// NewEdgeMap computes the Sobel edge map of rect within src.
//
// threshold is the gradient magnitude (0-255) a pixel must exceed to count as
// an edge; zero selects DefaultEdgeThreshold. The rectangle is clipped to the
// source.
func NewEdgeMap(src PixelSource, rect image.Rectangle, threshold uint8) *EdgeMap {
	if threshold == 0 {
		threshold = DefaultEdgeThreshold
	}
	rect = rect.Intersect(image.Rect(0, 0, src.Width(), src.Height()))
	w, h := rect.Dx(), rect.Dy()

	em := &EdgeMap{
		origin:    rect.Min,
		width:     w,
		height:    h,
		integral:  make([]int, (w+1)*(h+1)),
		threshold: threshold,
	}
	if w == 0 || h == 0 {
		return em
	}

	mask := sobelMask(effect.Grayscale(SubImage(src, rect)), float64(threshold))
	stride := w + 1
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				rowSum++
			}
			em.integral[(y+1)*stride+(x+1)] = em.integral[y*stride+(x+1)] + rowSum
		}
	}
	return em
}

// sobelMask marks pixels whose Sobel gradient magnitude, scaled to 0-255,
// exceeds threshold. gray is the output of effect.Grayscale, which stores
// the luminance in every colour channel; the red channel is read. Border
// pixels use edge-extended neighbours.
func sobelMask(gray *image.RGBA, threshold float64) []bool {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)

	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float64(gray.Pix[y*gray.Stride+x*4])
	}

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
					at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
				gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
					at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
				// Max magnitude of a 0-255 step is 4*255 per axis.
				if math.Hypot(gx, gy)/4 > threshold {
					mask[y*w+x] = true
				}
			}
		}
	})
	return mask
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Density returns the fraction of edge pixels inside rect (source
// coordinates). Portions of rect outside the mapped region are ignored;
// a window with no overlap has density 0.
func (e *EdgeMap) Density(rect image.Rectangle) float64 {
	local := rect.Sub(e.origin).Intersect(image.Rect(0, 0, e.width, e.height))
	if local.Empty() {
		return 0
	}
	stride := e.width + 1
	x0, y0, x1, y1 := local.Min.X, local.Min.Y, local.Max.X, local.Max.Y
	count := e.integral[y1*stride+x1] - e.integral[y0*stride+x1] - e.integral[y1*stride+x0] + e.integral[y0*stride+x0]
	return float64(count) / float64(local.Dx()*local.Dy())
}

// Bounds returns the mapped region in source coordinates.
func (e *EdgeMap) Bounds() image.Rectangle {
	return image.Rectangle{Min: e.origin, Max: e.origin.Add(image.Pt(e.width, e.height))}
}
