package table

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// Fragment is one recognized run of text and its location in image pixels.
type Fragment struct {
	Text       string
	Box        utils.Box
	Confidence float64
}

type fragmentJSON struct {
	Text       string    `json:"text"`
	Box        []float64 `json:"box"`
	Confidence float64   `json:"confidence,omitempty"`
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (f Fragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(fragmentJSON{Text: f.Text, Box: f.Box.Slice(), Confidence: f.Confidence})
}

// UnmarshalJSON decodes {"text": ..., "box": [x1, y1, x2, y2]}.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw fragmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	box, ok := utils.BoxFromSlice(raw.Box)
	if !ok {
		return fmt.Errorf("fragment %q: box must have 4 coordinates, got %d", raw.Text, len(raw.Box))
	}
	*f = Fragment{Text: raw.Text, Box: box, Confidence: raw.Confidence}
	return nil
}

// SortFragments orders fragments top-to-bottom, then left-to-right, in place.
// The sort is stable so equal positions keep their input order.
func SortFragments(frags []Fragment) {
	slices.SortStableFunc(frags, compareFragments)
}

func compareFragments(a, b Fragment) int {
	if c := cmp.Compare(a.Box.MinY, b.Box.MinY); c != 0 {
		return c
	}
	return cmp.Compare(a.Box.MinX, b.Box.MinX)
}

// join merges b into a as one word: text separated by a single space, boxes unioned.
func (f Fragment) join(b Fragment) Fragment {
	conf := f.Confidence
	if b.Confidence != 0 && (conf == 0 || b.Confidence < conf) {
		conf = b.Confidence
	}
	return Fragment{Text: f.Text + " " + b.Text, Box: f.Box.Union(b.Box), Confidence: conf}
}
