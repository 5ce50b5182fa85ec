package recognizer

import (
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/tidwall/rtree"
)

// PartitionByRegion assigns every fragment to the first region (in the given order) that
// contains the fragment's top-left corner, borders included. Fragments outside every region
// are discarded. The result has one list per region, in input order within each list.
func PartitionByRegion(frags []table.Fragment, regions []utils.Box) [][]table.Fragment {
	out := make([][]table.Fragment, len(regions))
	for i := range out {
		out[i] = []table.Fragment{}
	}
	if len(regions) == 0 {
		return out
	}

	var tr rtree.RTreeG[int]
	for i, r := range regions {
		tr.Insert([2]float64{r.MinX, r.MinY}, [2]float64{r.MaxX, r.MaxY}, i)
	}

	for _, f := range frags {
		p := f.Box.TopLeft()
		pt := [2]float64{p.X, p.Y}
		first := -1
		tr.Search(pt, pt, func(_, _ [2]float64, idx int) bool {
			if (first == -1 || idx < first) && regions[idx].ContainsPoint(p) {
				first = idx
			}
			return true
		})
		if first >= 0 {
			out[first] = append(out[first], f)
		}
	}
	return out
}
