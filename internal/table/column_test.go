package table

import (
	"testing"

	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frag(text string, x1, y1, x2, y2 float64) Fragment {
	return Fragment{Text: text, Box: utils.Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}}
}

func texts(c *Column) []string {
	out := make([]string, len(c.Fragments))
	for i, f := range c.Fragments {
		out[i] = f.Text
	}
	return out
}

func TestAssignColumns_TwoKnownColumns(t *testing.T) {
	specs := []ColumnSpec{
		{Name: "left", Box: utils.Box{MinX: 0, MinY: 0, MaxX: 50, MaxY: 100}},
		{Name: "right", Box: utils.Box{MinX: 50, MinY: 0, MaxX: 100, MaxY: 100}},
	}
	frags := []Fragment{frag("Foo", 5, 10, 45, 20), frag("Bar", 55, 10, 95, 20)}

	a := AssignColumns(specs, frags, DefaultAssignOptions())

	require.Len(t, a.Known, 2)
	assert.Equal(t, []string{"Foo"}, texts(a.Known[0]))
	assert.Equal(t, []string{"Bar"}, texts(a.Known[1]))
	assert.Empty(t, a.Unknown)
	assert.Zero(t, a.MergedWords)
}

func TestAssignColumns_MergesSplitWord(t *testing.T) {
	specs := []ColumnSpec{{Name: "greeting", Box: utils.Box{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}}}
	frags := []Fragment{frag("Hello", 0, 0, 40, 20), frag("World", 42, 2, 80, 20)}

	a := AssignColumns(specs, frags, DefaultAssignOptions())

	require.Len(t, a.Known[0].Fragments, 1)
	got := a.Known[0].Fragments[0]
	assert.Equal(t, "Hello World", got.Text)
	assert.Equal(t, utils.Box{MinX: 0, MinY: 0, MaxX: 80, MaxY: 20}, got.Box)
	assert.Equal(t, 1, a.MergedWords)
}

func TestAssignColumns_WordMergeThresholdBoundary(t *testing.T) {
	// previous fragment spans y 0..1000; the next one starts at y1 so that the vertical
	// overlap with the previous fragment is (1000-y1)/1000.
	tests := []struct {
		name      string
		y1        float64
		wantMerge bool
	}{
		{"29.9 percent", 701, false},
		{"exactly 30 percent", 700, true},
		{"30.1 percent", 699, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := []ColumnSpec{{Name: "c", Box: utils.Box{MinX: 0, MinY: 0, MaxX: 40, MaxY: 2000}}}
			frags := []Fragment{
				frag("a", 0, 0, 10, 1000),
				frag("b", 20, tt.y1, 30, tt.y1+1000),
			}

			a := AssignColumns(specs, frags, DefaultAssignOptions())
			col := a.Known[0]
			if tt.wantMerge {
				assert.Equal(t, []string{"a b"}, texts(col))
			} else {
				assert.Equal(t, []string{"a", "b"}, texts(col))
			}
		})
	}
}

func TestAssignColumns_FirstFragmentWidensColumn(t *testing.T) {
	specs := []ColumnSpec{{Name: "c", Box: utils.Box{MinX: 10, MinY: 0, MaxX: 20, MaxY: 100}}}
	frags := []Fragment{frag("wide", 5, 0, 30, 10)}

	a := AssignColumns(specs, frags, DefaultAssignOptions())

	assert.Equal(t, utils.Box{MinX: 5, MinY: 0, MaxX: 30, MaxY: 100}, a.Known[0].Box)
}

func TestAssignColumns_FirstMatchWins(t *testing.T) {
	specs := []ColumnSpec{
		{Name: "a", Box: utils.Box{MinX: 0, MinY: 0, MaxX: 60, MaxY: 100}},
		{Name: "b", Box: utils.Box{MinX: 40, MinY: 0, MaxX: 100, MaxY: 100}},
	}
	a := AssignColumns(specs, []Fragment{frag("mid", 45, 10, 55, 20)}, DefaultAssignOptions())

	assert.Equal(t, []string{"mid"}, texts(a.Known[0]))
	assert.Empty(t, a.Known[1].Fragments)
}

func TestAssignColumns_UnknownColumns(t *testing.T) {
	frags := []Fragment{
		frag("Name", 0, 0, 40, 10),
		frag("Age", 100, 0, 130, 10),
		frag("Alice", 0, 20, 45, 30),
		frag("31", 105, 20, 120, 30),
		frag("Name", 0, 40, 40, 50),
	}

	a := AssignColumns(nil, frags, DefaultAssignOptions())

	require.Len(t, a.Unknown, 2)
	assert.Equal(t, []string{"Name", "Alice", "Name"}, texts(a.Unknown[0]))
	assert.Equal(t, []string{"Age", "31"}, texts(a.Unknown[1]))
	assert.Equal(t, ColumnID{Kind: UnknownColumn, Name: "Name", Seq: 0}, a.Unknown[0].ID)
	assert.Equal(t, ColumnID{Kind: UnknownColumn, Name: "Age", Seq: 1}, a.Unknown[1].ID)
}

func TestAssignColumns_UnknownKeysUniqueForSameText(t *testing.T) {
	frags := []Fragment{frag("-", 0, 0, 10, 10), frag("-", 200, 0, 210, 10)}

	a := AssignColumns(nil, frags, DefaultAssignOptions())

	require.Len(t, a.Unknown, 2)
	assert.NotEqual(t, a.Unknown[0].ID.Key(), a.Unknown[1].ID.Key())
	assert.Equal(t, a.Unknown[0].ID.DisplayName(), a.Unknown[1].ID.DisplayName())
}

func TestAssignColumns_DegenerateFragmentGetsOwnColumn(t *testing.T) {
	frags := []Fragment{frag("x", 0, 0, 40, 10), frag("dot", 10, 20, 10, 30)}

	a := AssignColumns(nil, frags, DefaultAssignOptions())

	assert.Len(t, a.Unknown, 2)
}

func TestAssignment_ColumnsOrderAndMergeFlag(t *testing.T) {
	specs := []ColumnSpec{
		{Name: "right", Box: utils.Box{MinX: 200, MinY: 0, MaxX: 300, MaxY: 100}},
		{Name: "empty", Box: utils.Box{MinX: 500, MinY: 0, MaxX: 600, MaxY: 100}},
	}
	frags := []Fragment{frag("r", 210, 0, 250, 10), frag("l", 0, 0, 30, 10)}

	opts := DefaultAssignOptions()
	cols := AssignColumns(specs, frags, opts).Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, "l", cols[0].ID.Name)
	assert.Equal(t, "right", cols[1].ID.Name)

	opts.MergeUnknown = false
	cols = AssignColumns(specs, frags, opts).Columns()
	require.Len(t, cols, 1)
	assert.Equal(t, KnownColumn, cols[0].ID.Kind)
}

func TestColumnKind_String(t *testing.T) {
	assert.Equal(t, "known", KnownColumn.String())
	assert.Equal(t, "unknown", UnknownColumn.String())
	assert.Equal(t, "ColumnKind(7)", ColumnKind(7).String())
}
