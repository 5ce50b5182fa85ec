package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/table"
)

// FileEngine returns previously recognized fragments instead of running OCR. Its fragments
// are in page coordinates, so the Recognizer partitions them by region rather than
// cropping.
type FileEngine struct {
	Fragments []table.Fragment
}

// Name implements Engine.
func (e *FileEngine) Name() string { return EngineFragments }

// RecognizeImage implements Engine. The image is ignored.
func (e *FileEngine) RecognizeImage(ctx context.Context, _ image.Image) ([]table.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(e.Fragments), nil
}

// PageCoordinates reports that fragments never need shifting by a crop origin.
func (e *FileEngine) PageCoordinates() bool { return true }

// ReadFragments decodes a JSON array of fragments, [{"text": "...", "box": [x1, y1, x2, y2]}].
func ReadFragments(r io.Reader) ([]table.Fragment, error) {
	var frags []table.Fragment
	if err := json.NewDecoder(r).Decode(&frags); err != nil {
		return nil, fmt.Errorf("failed to decode fragments: %w", err)
	}
	return frags, nil
}

// LoadFragmentsFile reads fragments from a JSON file.
func LoadFragmentsFile(path string) ([]table.Fragment, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-supplied input file
	if err != nil {
		return nil, fmt.Errorf("failed to open fragments file: %w", err)
	}
	defer func() { _ = f.Close() }()

	frags, err := ReadFragments(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frags, nil
}
