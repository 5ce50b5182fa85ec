package testutil

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/require"
)

// SampleTable is a small invoice-like table with a header row.
func SampleTable() [][]string {
	return [][]string{
		{"Item", "Qty", "Price"},
		{"Apples", "3", "1.20"},
		{"Pears", "12", "0.80"},
		{"Plums", "", "2.10"},
	}
}

// SampleFragments returns the fragments of SampleTable as laid out by DefaultTableImageConfig.
func SampleFragments() []table.Fragment {
	return DefaultTableImageConfig().Fragments()
}

// Frag builds a fragment from text and corner coordinates.
func Frag(text string, x1, y1, x2, y2 float64) table.Fragment {
	return table.Fragment{Text: text, Box: utils.Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}}
}

// MarshalFragments encodes fragments in the fragments-file JSON format.
func MarshalFragments(t *testing.T, frags []table.Fragment) []byte {
	t.Helper()

	data, err := json.MarshalIndent(frags, "", "  ")
	require.NoError(t, err)
	return data
}

// WriteFragmentsFile writes fragments to a temporary JSON file and returns its path.
func WriteFragmentsFile(t *testing.T, frags []table.Fragment) string {
	t.Helper()

	return WriteTempFile(t, "fragments.json", MarshalFragments(t, frags))
}
