package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	dimaging "github.com/disintegration/imaging"
	"github.com/jtn0123/megabonk-vision/internal/detection"
)

// ErrUnavailable is returned when no OCR engine is compiled in.
var ErrUnavailable = errors.New("ocr engine not available")

// ErrUnreadable is returned when the engine ran but produced no plausible
// count.
var ErrUnreadable = errors.New("unreadable count")

// MaxCount is the largest stack count accepted as plausible.
const MaxCount = 9999

// upscale is the enlargement applied to count crops before recognition;
// Tesseract struggles with glyphs only a few pixels tall.
const upscale = 3

// Count is a recognised stack count.
type Count struct {
	Value      int     `json:"value"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// CountReader recognises the count in a prepared crop.
type CountReader interface {
	ReadCount(ctx context.Context, img image.Image) (Count, error)
}

// ParseCount extracts the count from recognised text. ok is false when the
// text is not a plausible count.
func ParseCount(text string) (n int, ok bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "x"), "X")
	s = strings.TrimPrefix(s, "×")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 4 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxCount {
		return 0, false
	}
	return n, true
}

// Prepare crops rect from img and turns it into dark text on a light
// background, enlarged for recognition. It returns nil when rect does not
// overlap img.
func Prepare(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil
	}
	crop := dimaging.Crop(img, rect)
	gray := dimaging.Grayscale(crop)
	big := dimaging.Resize(gray, rect.Dx()*upscale, rect.Dy()*upscale, dimaging.Lanczos)
	// Counts are drawn light on dark.
	return dimaging.Invert(big)
}

// ReadCounts reads the count in each region of img, keyed like regions.
// Regions whose text is unreadable are left out; any other error, including
// context cancellation, stops the scan and is returned with the counts read
// so far.
func ReadCounts(ctx context.Context, r CountReader, img image.Image, regions map[int]detection.ROI) (map[int]Count, error) {
	out := make(map[int]Count, len(regions))
	for idx, roi := range regions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		prepared := Prepare(img, roi.Rect())
		if prepared == nil {
			continue
		}
		c, err := r.ReadCount(ctx, prepared)
		if errors.Is(err, ErrUnreadable) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("region %d: %w", idx, err)
		}
		if c.Value > 0 {
			out[idx] = c
		}
	}
	return out, nil
}

// countFromText builds a Count from engine output.
func countFromText(text string, confidence float64) (Count, error) {
	n, ok := ParseCount(text)
	if !ok {
		return Count{}, fmt.Errorf("%w: %q", ErrUnreadable, strings.TrimSpace(text))
	}
	return Count{Value: n, Text: strings.TrimSpace(text), Confidence: confidence}, nil
}
