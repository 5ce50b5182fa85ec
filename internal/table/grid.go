package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrRaggedGrid is returned when a grid row does not match the column count.
var ErrRaggedGrid = errors.New("grid rows do not match column count")

// Value is a nullable grid cell.
type Value struct {
	Text  string
	Valid bool
}

// Str returns a non-null cell holding s.
func Str(s string) Value { return Value{Text: s, Valid: true} }

// Blank reports whether the cell is null or holds only whitespace.
func (v Value) Blank() bool { return !v.Valid || strings.TrimSpace(v.Text) == "" }

// String returns the text, or "" for null cells.
func (v Value) String() string { return v.Text }

// MarshalJSON encodes null cells as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Str(s)
	return nil
}

// Extent is a row's bounding extent in image pixels.
type Extent struct {
	MinX float64 `json:"row_min_x"`
	MaxX float64 `json:"row_max_x"`
	MinY float64 `json:"row_min_y"`
	MaxY float64 `json:"row_max_y"`
}

// Grid is a rectangular table: every row holds one value per column. Extents, when
// present, holds one entry per row.
type Grid struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
	Extents []Extent  `json:"extents,omitempty"`
}

// NumRows returns the number of rows.
func (g Grid) NumRows() int { return len(g.Rows) }

// IsEmpty reports whether the grid has no rows or no columns.
func (g Grid) IsEmpty() bool { return len(g.Columns) == 0 || len(g.Rows) == 0 }

// Validate checks that the grid is rectangular.
func (g Grid) Validate() error {
	for i, r := range g.Rows {
		if len(r) != len(g.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedGrid, i, len(r), len(g.Columns))
		}
	}
	if g.Extents != nil && len(g.Extents) != len(g.Rows) {
		return fmt.Errorf("%w: %d extents for %d rows", ErrRaggedGrid, len(g.Extents), len(g.Rows))
	}
	return nil
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := Grid{Columns: slices.Clone(g.Columns), Extents: slices.Clone(g.Extents)}
	if g.Rows != nil {
		out.Rows = make([][]Value, len(g.Rows))
		for i, r := range g.Rows {
			out.Rows[i] = slices.Clone(r)
		}
	}
	return out
}

// Column returns the values of column idx, top to bottom.
func (g Grid) Column(idx int) []Value {
	out := make([]Value, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = r[idx]
	}
	return out
}

// Strings returns the cells as plain strings, null cells as "".
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g.Rows))
	for i, r := range g.Rows {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = v.Text
		}
		out[i] = row
	}
	return out
}

// WithGenericColumns returns a copy whose columns are named "column 1" .. "column n".
func (g Grid) WithGenericColumns() Grid {
	out := g.Clone()
	for i := range out.Columns {
		out.Columns[i] = fmt.Sprintf("column %d", i+1)
	}
	return out
}

func (g *Grid) removeColumn(idx int) {
	g.Columns = slices.Delete(g.Columns, idx, idx+1)
	for i := range g.Rows {
		g.Rows[i] = slices.Delete(g.Rows[i], idx, idx+1)
	}
}
