package detector

import (
	"cmp"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// NonMaxSuppression performs class-agnostic greedy NMS. Detections are visited by
// descending confidence and every lower-scored detection whose IoU with a kept one exceeds
// iouThreshold is suppressed. The result is ordered by descending confidence.
func NonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) <= 1 {
		return slices.Clone(dets)
	}

	order := sortByConfidence(dets)
	suppressed := make([]bool, len(dets))
	kept := make([]Detection, 0, len(dets))

	for i, a := range order {
		if suppressed[a] {
			continue
		}
		kept = append(kept, dets[a])
		for _, b := range order[i+1:] {
			if !suppressed[b] && ComputeIoU(dets[a].Box, dets[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}

// sortByConfidence returns detection indices ordered by descending confidence, ties in
// input order.
func sortByConfidence(dets []Detection) []int {
	idx := make([]int, len(dets))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(dets[b].Confidence, dets[a].Confidence)
	})
	return idx
}

// ComputeIoU returns intersection over union of two boxes, 0 when they do not overlap.
func ComputeIoU(a, b utils.Box) float64 {
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
