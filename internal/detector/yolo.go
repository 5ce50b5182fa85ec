package detector

import (
	"github.com/MeKo-Tech/tablo/internal/onnx"
	"github.com/MeKo-Tech/tablo/internal/utils"
)

// decodePredictions turns a YOLO head output (features cx, cy, w, h followed by one score
// per class) into detections mapped back to image pixels. Predictions scoring below
// minConfidence, or that collapse to an empty box after clamping, are skipped.
func decodePredictions(p onnx.Predictions, minConfidence float64, lb utils.Letterbox, width, height int) []Detection {
	classes := p.Features - 4
	if classes < 1 {
		return nil
	}

	var out []Detection
	for i := range p.Count {
		best, score := 0, p.At(4, i)
		for c := 1; c < classes; c++ {
			if s := p.At(4+c, i); s > score {
				best, score = c, s
			}
		}
		if float64(score) < minConfidence {
			continue
		}

		cx, cy := float64(p.At(0, i)), float64(p.At(1, i))
		w, h := float64(p.At(2, i)), float64(p.At(3, i))
		box := utils.Box{MinX: cx - w/2, MinY: cy - h/2, MaxX: cx + w/2, MaxY: cy + h/2}
		box = lb.ToImage(box).Clamp(float64(width), float64(height))
		if box.IsEmpty() {
			continue
		}

		out = append(out, Detection{Box: box, Class: best, Confidence: float64(score)})
	}
	return out
}
