// Package ocr reads the stack counts drawn in the corner of hotbar icons.
//
// The detection core only says where a count may be (see
// detection.CountRegion); this package crops those regions, prepares them
// for recognition and parses what comes back. Recognition itself is behind
// the CountReader interface.
//
// # Tesseract
//
// TesseractReader uses the Tesseract engine via gosseract and is only
// available in cgo builds. Tesseract and its English training data must be
// installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// Without cgo, NewTesseractReader returns ErrUnavailable.
//
// # Count Format
//
// Counts are short runs of digits, optionally with a leading or trailing
// 'x' ("x12", "3x"). Anything else is reported as ErrUnreadable rather than
// guessed at.
package ocr
