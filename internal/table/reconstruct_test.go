package table

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// invoiceFragments is a small three-column table as an OCR engine would report it, with the
// description "Blue pen" split into two fragments.
func invoiceFragments() []Fragment {
	return []Fragment{
		frag("Item", 10, 10, 100, 30),
		frag("Qty", 200, 10, 240, 30),
		frag("Price", 300, 10, 360, 30),
		frag("Blue", 10, 50, 50, 70),
		frag("pen", 55, 52, 85, 70),
		frag("2", 210, 50, 220, 70),
		frag("1.50", 300, 50, 340, 70),
		frag("Paper", 10, 90, 70, 110),
		frag("10", 205, 90, 225, 110),
		frag("4.00", 300, 90, 340, 110),
	}
}

func TestReconstruct_InvoiceTable(t *testing.T) {
	res := Reconstruct(invoiceFragments(), DefaultOptions())

	assert.Equal(t, []string{"column 1", "column 2", "column 3"}, res.Raw.Columns)
	assert.Equal(t, []string{"Item", "Qty", "Price"}, res.Table.Columns)
	assert.Equal(t, [][]string{
		{"Item", "Qty", "Price"},
		{"Blue pen", "2", "1.50"},
		{"Paper", "10", "4.00"},
	}, res.Table.Strings())
	assert.Equal(t, res.Table.Strings(), res.Raw.Strings())

	assert.Equal(t, 10, res.Diagnostics.Fragments)
	assert.Equal(t, 3, res.Diagnostics.Columns)
	assert.Equal(t, 3, res.Diagnostics.UnknownColumns)
	assert.Equal(t, 1, res.Diagnostics.MergedWords)
	assert.Zero(t, res.Diagnostics.DroppedFragments)
	assert.NoError(t, res.Diagnostics.PostprocessError)
	require.Len(t, res.Raw.Extents, 3)
	assert.Equal(t, Extent{MinX: 10, MaxX: 340, MinY: 50, MaxY: 70}, res.Raw.Extents[1])
}

func TestReconstruct_Headers(t *testing.T) {
	opts := DefaultOptions()
	opts.Headers = []string{"Price", "Item"}

	res := Reconstruct(invoiceFragments(), opts)

	assert.Equal(t, []string{"Price", "Item", "Qty"}, res.Table.Columns)
	assert.Equal(t, "1.50", res.Table.Rows[1][0].Text)
}

func TestReconstruct_ColumnWithoutHeader(t *testing.T) {
	frags := []Fragment{
		frag("Name", 100, 10, 160, 30),
		frag("Age", 300, 10, 340, 30),
		frag("1", 10, 50, 20, 70),
		frag("Ann", 100, 50, 140, 70),
		frag("30", 300, 50, 320, 70),
	}

	res := Reconstruct(frags, DefaultOptions())

	assert.Len(t, res.Raw.Columns, 3)
	assert.Equal(t, [][]string{{"", "Name", "Age"}, {"1", "Ann", "30"}}, res.Raw.Strings())
	assert.Equal(t, []string{"Name", "Age"}, res.Table.Columns)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"1 Ann", "30"}}, res.Table.Strings())
}

func TestReconstruct_Empty(t *testing.T) {
	res := Reconstruct(nil, DefaultOptions())

	assert.True(t, res.Raw.IsEmpty())
	assert.True(t, res.Table.IsEmpty())
	assert.Zero(t, res.Diagnostics.Columns)
}

func TestReconstruct_DropHook(t *testing.T) {
	var n int
	opts := DefaultOptions()
	opts.OnDrop = func(string, Fragment) { n++ }
	frags := []Fragment{
		frag("a", 0, 0, 40, 100),
		frag("b", 100, 0, 140, 100),
		frag("c", 100, 99, 140, 199),
	}

	res := Reconstruct(frags, opts)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, res.Diagnostics.DroppedFragments)
}

func TestFragment_JSON(t *testing.T) {
	var f Fragment
	require.NoError(t, json.Unmarshal([]byte(`{"text":"Total","box":[1,2,30,12]}`), &f))
	assert.Equal(t, Fragment{Text: "Total", Box: utils.Box{MinX: 1, MinY: 2, MaxX: 30, MaxY: 12}}, f)

	err := json.Unmarshal([]byte(`{"text":"bad","box":[1,2]}`), &f)
	assert.Error(t, err)
}

func TestGrid_JSONNullCells(t *testing.T) {
	g := Grid{Columns: []string{"a", "b"}, Rows: [][]Value{{Str("x"), {}}}}

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["a","b"],"rows":[["x",null]]}`, string(data))

	var back Grid
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Rows, back.Rows)
}
