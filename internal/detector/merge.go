package detector

import (
	"cmp"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// DefaultMergeThreshold is the overlap percentage above which two detected regions are
// treated as the same table.
const DefaultMergeThreshold = 35.0

// MergeBoxes collapses duplicate detections of the same region. Boxes are visited largest
// area first; a box whose overlap with an already kept box exceeds threshold is absorbed by
// that box (the larger of the two survives in place), otherwise it is kept as a new region.
// The result is ordered by descending area. The input slice is not modified.
func MergeBoxes(boxes []utils.Box, threshold float64) []utils.Box {
	sorted := slices.Clone(boxes)
	slices.SortStableFunc(sorted, func(a, b utils.Box) int {
		return cmp.Compare(b.Area(), a.Area())
	})

	kept := make([]utils.Box, 0, len(sorted))
	for _, box := range sorted {
		absorbed := false
		for i, k := range kept {
			if utils.OverlapPercent(box, k) <= threshold {
				continue
			}
			if box.Area() > k.Area() {
				kept[i] = box
			}
			absorbed = true
			break
		}
		if !absorbed {
			kept = append(kept, box)
		}
	}
	return kept
}

// SelectPrimaryTable returns the box with the largest area. The first of equally large
// boxes wins. It reports false for an empty input.
func SelectPrimaryTable(boxes []utils.Box) (utils.Box, bool) {
	if len(boxes) == 0 {
		return utils.Box{}, false
	}
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Area() > best.Area() {
			best = b
		}
	}
	return best, true
}
