//go:build !tesseract

package recognizer

import "fmt"

// NewTesseractEngine reports ErrEngineUnavailable; build with -tags=tesseract to link
// the Tesseract engine.
func NewTesseractEngine(_, _ string) (Engine, error) {
	return nil, fmt.Errorf("%w: tesseract (build with -tags=tesseract)", ErrEngineUnavailable)
}
