package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableStructure_TwoAlignedColumns(t *testing.T) {
	cols := []ColumnFragments{
		{Name: "A", Fragments: []Fragment{frag("a1", 0, 0, 40, 20), frag("a2", 0, 30, 40, 50)}},
		{Name: "B", Fragments: []Fragment{frag("b1", 50, 0, 90, 18), frag("b2", 50, 32, 90, 48)}},
	}

	ts := NewTableStructure()
	g := ts.Build(cols)

	assert.Equal(t, []string{"A", "B"}, g.Columns)
	assert.Equal(t, [][]string{{"a1", "b1"}, {"a2", "b2"}}, g.Strings())
	assert.Equal(t, []Extent{
		{MinX: 0, MaxX: 90, MinY: 0, MaxY: 20},
		{MinX: 0, MaxX: 90, MinY: 30, MaxY: 50},
	}, g.Extents)
	assert.Zero(t, ts.Dropped())
}

func TestTableStructure_InsertsRowAbove(t *testing.T) {
	cols := []ColumnFragments{
		{Name: "A", Fragments: []Fragment{frag("a2", 0, 30, 40, 50)}},
		{Name: "B", Fragments: []Fragment{frag("b1", 50, 0, 90, 20), frag("b2", 50, 30, 90, 50)}},
	}

	g := NewTableStructure().Build(cols)

	require.Len(t, g.Rows, 2)
	assert.Equal(t, []Value{{}, Str("b1")}, g.Rows[0])
	assert.Equal(t, []Value{Str("a2"), Str("b2")}, g.Rows[1])
}

func TestTableStructure_AppendsRowBelow(t *testing.T) {
	cols := []ColumnFragments{
		{Name: "A", Fragments: []Fragment{frag("a1", 0, 0, 40, 20)}},
		{Name: "B", Fragments: []Fragment{frag("b1", 50, 0, 90, 20), frag("b3", 50, 60, 90, 80)}},
	}

	g := NewTableStructure().Build(cols)

	require.Len(t, g.Rows, 2)
	assert.Equal(t, []Value{{}, Str("b3")}, g.Rows[1])
	assert.Equal(t, Extent{MinX: 50, MaxX: 90, MinY: 60, MaxY: 80}, g.Extents[1])
}

func TestTableStructure_DropsUnplaceableFragment(t *testing.T) {
	// b2 starts inside the only row, which the cursor already passed after b1, and it
	// does not start below that row, so no placement rule applies.
	cols := []ColumnFragments{
		{Name: "A", Fragments: []Fragment{frag("a1", 0, 0, 40, 100)}},
		{Name: "B", Fragments: []Fragment{frag("b1", 50, 0, 90, 100), frag("b2", 50, 99, 90, 199)}},
	}

	var dropped []string
	ts := NewTableStructure()
	ts.OnDrop = func(column string, f Fragment) { dropped = append(dropped, column+":"+f.Text) }
	g := ts.Build(cols)

	assert.Len(t, g.Rows, 1)
	assert.Equal(t, 1, ts.Dropped())
	assert.Equal(t, []string{"B:b2"}, dropped)
}

func TestTableStructure_ResortsColumnInput(t *testing.T) {
	cols := []ColumnFragments{
		{Name: "A", Fragments: []Fragment{frag("a2", 0, 30, 40, 50), frag("a1", 0, 0, 40, 20)}},
	}

	g := NewTableStructure().Build(cols)

	assert.Equal(t, [][]string{{"a1"}, {"a2"}}, g.Strings())
}

func TestTableStructure_EmptyInput(t *testing.T) {
	g := NewTableStructure().Build(nil)
	assert.True(t, g.IsEmpty())
	assert.Empty(t, g.Columns)

	g = NewTableStructure().Build([]ColumnFragments{
		{Name: "A"},
		{Name: "B", Fragments: []Fragment{frag("b1", 50, 0, 90, 20)}},
	})
	assert.Equal(t, [][]string{{"", "b1"}}, g.Strings())
}

func TestTableStructure_RowCell(t *testing.T) {
	ts := NewTableStructure()
	ts.Build([]ColumnFragments{{Name: "A", Fragments: []Fragment{frag("a1", 0, 0, 40, 20)}}})

	rows := ts.Rows()
	require.Len(t, rows, 1)
	f, ok := rows[0].Cell(0)
	assert.True(t, ok)
	assert.Equal(t, "a1", f.Text)
	_, ok = rows[0].Cell(3)
	assert.False(t, ok)
}
