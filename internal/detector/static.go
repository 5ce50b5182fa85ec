package detector

import (
	"context"
	"image"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// Static reports the same regions for every image. With no boxes it never detects a table.
type Static struct {
	Regions []utils.Box
}

// Detect implements Detector.
func (s Static) Detect(ctx context.Context, _ image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Detection, 0, len(s.Regions))
	for _, b := range s.Regions {
		out = append(out, Detection{Box: b, Confidence: 1})
	}
	return out, nil
}

// WholeImage reports the full image bounds as the only region. It stands in for a
// detection model when the input is known to be a cropped table.
type WholeImage struct{}

// Detect implements Detector.
func (WholeImage) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return []Detection{}, nil
	}
	return []Detection{{Box: utils.BoxFromRect(img.Bounds()), Confidence: 1}}, nil
}
