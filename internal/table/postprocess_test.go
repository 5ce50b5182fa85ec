package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strRow(vals ...string) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = Str(v)
	}
	return out
}

func TestPostprocess_FoldsEmptyHeadedFirstColumn(t *testing.T) {
	g := Grid{
		Columns: []string{"idx", "Name", "Age"},
		Rows: [][]Value{
			strRow("", "Name", "Age"),
			strRow("1", "Alice", "31"),
			strRow("2", "Bob", "40"),
		},
	}

	out, err := Postprocess(g, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Age"}, out.Columns)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"1 Alice", "31"}, {"2 Bob", "40"}}, out.Strings())
	// input untouched
	assert.Len(t, g.Columns, 3)
}

func TestPostprocess_FoldsIntoPrecedingColumn(t *testing.T) {
	g := Grid{
		Columns: []string{"Item", "cont", "Price"},
		Rows: [][]Value{
			{Str("Item"), {}, Str("Price")},
			{Str("Red"), Str("apple"), Str("3")},
			{Str("Pear"), {}, Str("2")},
		},
	}

	out, err := Postprocess(g, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Item", "Price"}, out.Columns)
	assert.Equal(t, [][]string{{"Item", "Price"}, {"Red apple", "3"}, {"Pear", "2"}}, out.Strings())
}

func TestPostprocess_DropsEmptyRowsWithExtents(t *testing.T) {
	g := Grid{
		Columns: []string{"A", "B"},
		Rows: [][]Value{
			strRow("A", "B"),
			{{}, Str("  ")},
			strRow("1", "2"),
		},
		Extents: []Extent{{MinY: 0}, {MinY: 10}, {MinY: 20}},
	}

	out, err := Postprocess(g, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A", "B"}, {"1", "2"}}, out.Strings())
	assert.Equal(t, []Extent{{MinY: 0}, {MinY: 20}}, out.Extents)
}

func TestPostprocess_CanonicalHeaders(t *testing.T) {
	g := Grid{
		Columns: []string{"First Name", "Last Name", "Age", "Notes"},
		Rows: [][]Value{
			strRow("First Name", "Last Name", "Age", "Notes"),
			{Str(" Ada "), Str("Lovelace"), Str("36"), {}},
			{Str("Alan"), {}, Str("41"), Str("x")},
		},
	}

	out, err := Postprocess(g, []string{"Name", "Age", "Missing"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Age", "Notes"}, out.Columns)
	assert.Equal(t, "Ada Lovelace", out.Rows[1][0].Text)
	assert.Equal(t, "Alan", out.Rows[2][0].Text)
	assert.Equal(t, "36", out.Rows[1][1].Text)
	assert.False(t, out.Rows[1][2].Valid)
	assert.Equal(t, "x", out.Rows[2][2].Text)
}

func TestPostprocess_RaggedGrid(t *testing.T) {
	g := Grid{Columns: []string{"A", "B"}, Rows: [][]Value{strRow("only")}}

	out, err := Postprocess(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRaggedGrid))
	assert.Equal(t, g, out)
}

func TestPostprocess_SingleColumnDropsBlankRows(t *testing.T) {
	g := Grid{Columns: []string{"x"}, Rows: [][]Value{{{}}, strRow("1")}}

	out, err := Postprocess(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out.Columns)
	assert.Equal(t, [][]string{{"1"}}, out.Strings())
}

func TestJoinValues(t *testing.T) {
	assert.Equal(t, Str("a b"), joinValues(Str("a"), Str("b")))
	assert.Equal(t, Str("a"), joinValues(Str("a"), Value{}))
	assert.Equal(t, Str("b"), joinValues(Value{}, Str("b")))
	assert.Equal(t, Value{}, joinValues(Value{}, Value{}))
	assert.Equal(t, Str(""), joinValues(Str(" "), Value{}))
}
