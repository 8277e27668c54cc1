package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// TemplateSize is the edge length icon templates are normalised to before
// use. Source art is often 32x32; upscaling once with Lanczos keeps detail
// when the matcher later scales templates to the on-screen icon size.
const TemplateSize = 64

// EncodedImage is a PNG rendered for transport.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image.
//
// The rectangle is given in the image's own coordinate space and must lie
// inside its bounds.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()

	if !rect.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return imaging.Crop(img, rect), nil
}

// CropClamped crops the intersection of rect and the image bounds, returning
// nil when they do not overlap.
func CropClamped(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil
	}
	return imaging.Crop(img, rect)
}

// Resize scales img to exactly width x height using Lanczos resampling.
func Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// NormalizeTemplate returns img resized to TemplateSize x TemplateSize.
// Templates already at that size are returned unchanged.
func NormalizeTemplate(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == TemplateSize && b.Dy() == TemplateSize {
		return img
	}
	return Resize(img, TemplateSize, TemplateSize)
}

// EncodePNG renders img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
