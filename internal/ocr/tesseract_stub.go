//go:build !cgo

package ocr

import (
	"context"
	"image"
)

// TesseractReader is unavailable without cgo.
type TesseractReader struct{}

// NewTesseractReader returns ErrUnavailable in builds without cgo.
func NewTesseractReader(string) (*TesseractReader, error) {
	return nil, ErrUnavailable
}

// ReadCount implements CountReader.
func (*TesseractReader) ReadCount(context.Context, image.Image) (Count, error) {
	return Count{}, ErrUnavailable
}
