package detector

import (
	"context"
	"image"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// Detection is one table region found in an image, in image pixel coordinates.
type Detection struct {
	Box        utils.Box
	Class      int
	Confidence float64
}

// Detector finds candidate table regions in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Boxes returns the boxes of dets in order.
func Boxes(dets []Detection) []utils.Box {
	out := make([]utils.Box, len(dets))
	for i, d := range dets {
		out[i] = d.Box
	}
	return out
}
