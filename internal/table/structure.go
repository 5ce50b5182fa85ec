package table

import (
	"math"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// ColumnFragments is one column's name and its fragments, top to bottom.
type ColumnFragments struct {
	Name      string
	Fragments []Fragment
}

// Row is one horizontal slice of the table: at most one cell per column plus the row's extent.
type Row struct {
	cells  []*Fragment
	Extent Extent
}

// Cell returns the fragment placed in the given column index, if any.
func (r *Row) Cell(col int) (Fragment, bool) {
	if col < 0 || col >= len(r.cells) || r.cells[col] == nil {
		return Fragment{}, false
	}
	return *r.cells[col], true
}

// DropHook observes fragments the row aligner could not place.
type DropHook func(column string, f Fragment)

// TableStructure aligns per-column fragment streams into an ordered row sequence.
// Rows are kept sorted by Extent.MinY at all times. A TableStructure is owned by a single
// reconstruction pass.
type TableStructure struct {
	// RowThreshold: a fragment joins a row when its overlap with the row band exceeds it.
	RowThreshold float64
	// OnDrop, if set, is called for every fragment that ends up in no row.
	OnDrop DropHook

	width   int
	rows    []*Row
	dropped int
}

// NewTableStructure returns a structure using the standard row threshold of 10 percent.
func NewTableStructure() *TableStructure {
	return &TableStructure{RowThreshold: 10}
}

// Rows returns the current row sequence.
func (s *TableStructure) Rows() []*Row { return s.rows }

// Dropped returns how many fragments were not placed in any row.
func (s *TableStructure) Dropped() int { return s.dropped }

// Build seeds one row per fragment of the first column and merges every following column
// into the row sequence, then emits the grid. Each column is stably re-sorted top to
// bottom first; the merge cursor only moves forward.
func (s *TableStructure) Build(columns []ColumnFragments) Grid {
	s.width = len(columns)
	s.rows = nil
	s.dropped = 0

	for i, col := range columns {
		frags := slices.Clone(col.Fragments)
		SortFragments(frags)

		if i == 0 {
			for _, f := range frags {
				s.place(len(s.rows), s.newRow(0, f))
			}
			continue
		}
		s.mergeColumn(i, col.Name, frags)
	}

	return s.grid(columns)
}

func (s *TableStructure) mergeColumn(col int, name string, frags []Fragment) {
	cursor := 0
	for _, f := range frags {
		if len(s.rows) == 0 {
			s.place(0, s.newRow(col, f))
			continue
		}

		placed := false
		for idx := cursor; idx < len(s.rows); idx++ {
			row := s.rows[idx]
			probe := utils.Box{MinX: f.Box.MinX, MinY: row.Extent.MinY, MaxX: f.Box.MaxX, MaxY: row.Extent.MaxY}
			if utils.OverlapPercent(f.Box, probe) > s.RowThreshold {
				s.update(row, col, name, f)
				cursor = idx + 1
				placed = true
				break
			}
			if f.Box.MaxY <= row.Extent.MinY {
				s.place(idx, s.newRow(col, f))
				cursor = idx + 1
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		if last := s.rows[len(s.rows)-1]; f.Box.MinY >= last.Extent.MaxY {
			s.place(len(s.rows), s.newRow(col, f))
			continue
		}
		s.drop(name, f)
	}
}

func (s *TableStructure) newRow(col int, f Fragment) *Row {
	r := &Row{cells: make([]*Fragment, s.width)}
	r.cells[col] = &f
	r.Extent = Extent{MinX: f.Box.MinX, MaxX: f.Box.MaxX, MinY: f.Box.MinY, MaxY: f.Box.MaxY}
	return r
}

// update sets the row's cell for col and widens the row horizontally. A fragment already
// in that cell is replaced and reported as dropped.
func (s *TableStructure) update(r *Row, col int, name string, f Fragment) {
	if prev := r.cells[col]; prev != nil {
		s.drop(name, *prev)
	}
	r.cells[col] = &f
	r.Extent.MinX = math.Min(r.Extent.MinX, f.Box.MinX)
	r.Extent.MaxX = math.Max(r.Extent.MaxX, f.Box.MaxX)
}

// place inserts r at position at, shifted as needed so MinY stays non-decreasing.
func (s *TableStructure) place(at int, r *Row) {
	for at > 0 && s.rows[at-1].Extent.MinY > r.Extent.MinY {
		at--
	}
	for at < len(s.rows) && s.rows[at].Extent.MinY < r.Extent.MinY {
		at++
	}
	s.rows = slices.Insert(s.rows, at, r)
}

func (s *TableStructure) drop(name string, f Fragment) {
	s.dropped++
	if s.OnDrop != nil {
		s.OnDrop(name, f)
	}
}

func (s *TableStructure) grid(columns []ColumnFragments) Grid {
	g := Grid{Columns: make([]string, len(columns))}
	for i, c := range columns {
		g.Columns[i] = c.Name
	}
	if len(columns) == 0 {
		return g
	}

	g.Rows = make([][]Value, len(s.rows))
	g.Extents = make([]Extent, len(s.rows))
	for i, r := range s.rows {
		vals := make([]Value, len(columns))
		for c := range columns {
			if f, ok := r.Cell(c); ok {
				vals[c] = Str(f.Text)
			}
		}
		g.Rows[i] = vals
		g.Extents[i] = r.Extent
	}
	return g
}
