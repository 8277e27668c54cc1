//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// TesseractReader reads counts with Tesseract, restricted to digits and
// 'x' on a single line. A new engine client is used per call, so a reader
// is safe for concurrent use.
type TesseractReader struct {
	language string
}

// NewTesseractReader creates a reader for language ("eng" when empty).
func NewTesseractReader(language string) (*TesseractReader, error) {
	if language == "" {
		language = "eng"
	}
	return &TesseractReader{language: language}, nil
}

// ReadCount implements CountReader.
func (r *TesseractReader) ReadCount(ctx context.Context, img image.Image) (Count, error) {
	if err := ctx.Err(); err != nil {
		return Count{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Count{}, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return Count{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetWhitelist("0123456789xX"); err != nil {
		return Count{}, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return Count{}, fmt.Errorf("failed to set page mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Count{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Count{}, fmt.Errorf("OCR failed: %w", err)
	}

	confidence := 0.0
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		for _, b := range boxes {
			confidence += b.Confidence
		}
		confidence = confidence / float64(len(boxes)) / 100
	}
	return countFromText(text, confidence)
}
