package table

import (
	"fmt"
	"math"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/utils"
)

// ColumnKind tells predefined columns apart from columns created during assignment.
type ColumnKind int

const (
	// KnownColumn is a column defined up front by the caller.
	KnownColumn ColumnKind = iota
	// UnknownColumn is created on the fly for a fragment that fits no existing column.
	UnknownColumn
)

func (k ColumnKind) String() string {
	switch k {
	case KnownColumn:
		return "known"
	case UnknownColumn:
		return "unknown"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ColumnID identifies a column. Known columns are identified by name. Unknown columns carry
// the text of the fragment that created them and that fragment's source index, which keeps
// two columns seeded by the same text distinct.
type ColumnID struct {
	Kind ColumnKind
	Name string
	Seq  int
}

// Key returns a string unique among all columns of one assignment.
func (id ColumnID) Key() string {
	if id.Kind == KnownColumn {
		return "known/" + id.Name
	}
	return fmt.Sprintf("unknown/%d/%s", id.Seq, id.Name)
}

// DisplayName is the column name shown in output grids.
func (id ColumnID) DisplayName() string { return id.Name }

// ColumnSpec defines a known column by name and boundary box.
type ColumnSpec struct {
	Name string
	Box  utils.Box
}

// Column is a column boundary box plus the fragments assigned to it so far.
type Column struct {
	ID        ColumnID
	Box       utils.Box
	Fragments []Fragment
}

// Widen grows the column box horizontally so it encloses b. The vertical band is unchanged.
func (c *Column) Widen(b utils.Box) {
	c.Box.MinX = math.Min(c.Box.MinX, b.MinX)
	c.Box.MaxX = math.Max(c.Box.MaxX, b.MaxX)
}

// LeftEdge returns the smallest x1 among the column's fragments.
func (c *Column) LeftEdge() float64 {
	left := math.Inf(1)
	for _, f := range c.Fragments {
		left = math.Min(left, f.Box.MinX)
	}
	return left
}

func (c *Column) last() (Fragment, bool) {
	if len(c.Fragments) == 0 {
		return Fragment{}, false
	}
	return c.Fragments[len(c.Fragments)-1], true
}

// AssignOptions holds the overlap thresholds (percent) used by AssignColumns.
type AssignOptions struct {
	// ColumnThreshold: a fragment joins a known column when overlap exceeds it.
	ColumnThreshold float64
	// WordMergeThreshold: a fragment is merged into the column's previous fragment when
	// their vertical overlap is at least this value.
	WordMergeThreshold float64
	// UnknownColumnThreshold: a fragment joins an unknown column when overlap exceeds it.
	UnknownColumnThreshold float64
	// MergeUnknown includes unknown columns in the assignment result.
	MergeUnknown bool
}

// DefaultAssignOptions returns the standard thresholds.
func DefaultAssignOptions() AssignOptions {
	return AssignOptions{
		ColumnThreshold:        10,
		WordMergeThreshold:     30,
		UnknownColumnThreshold: 30,
		MergeUnknown:           true,
	}
}

// Assignment is the outcome of distributing fragments into columns.
type Assignment struct {
	Known       []*Column
	Unknown     []*Column
	MergedWords int
	includeUnk  bool
}

// Columns returns the non-empty result columns ordered left to right by each column's
// leftmost fragment. Ties keep known columns first, then creation order.
func (a *Assignment) Columns() []*Column {
	cols := make([]*Column, 0, len(a.Known)+len(a.Unknown))
	for _, c := range a.Known {
		if len(c.Fragments) > 0 {
			cols = append(cols, c)
		}
	}
	if a.includeUnk {
		cols = append(cols, a.Unknown...)
	}
	slices.SortStableFunc(cols, func(x, y *Column) int {
		lx, ly := x.LeftEdge(), y.LeftEdge()
		switch {
		case lx < ly:
			return -1
		case lx > ly:
			return 1
		default:
			return 0
		}
	})
	return cols
}

// AssignColumns distributes fragments, in order, into the known columns given by specs and
// into unknown columns created along the way. The first matching column wins.
func AssignColumns(specs []ColumnSpec, fragments []Fragment, opts AssignOptions) *Assignment {
	a := &Assignment{includeUnk: opts.MergeUnknown}
	for _, s := range specs {
		a.Known = append(a.Known, &Column{ID: ColumnID{Kind: KnownColumn, Name: s.Name}, Box: s.Box})
	}

	for idx, f := range fragments {
		if a.assignKnown(f, opts) {
			continue
		}
		if a.assignUnknown(f, opts) {
			continue
		}
		a.Unknown = append(a.Unknown, &Column{
			ID:        ColumnID{Kind: UnknownColumn, Name: f.Text, Seq: idx},
			Box:       f.Box,
			Fragments: []Fragment{f},
		})
	}
	return a
}

func (a *Assignment) assignKnown(f Fragment, opts AssignOptions) bool {
	for _, col := range a.Known {
		probe := utils.Box{MinX: f.Box.MinX, MinY: col.Box.MinY, MaxX: f.Box.MaxX, MaxY: col.Box.MaxY}
		if utils.OverlapPercent(probe, col.Box) <= opts.ColumnThreshold {
			continue
		}
		if len(col.Fragments) == 0 {
			col.Fragments = append(col.Fragments, f)
			col.Widen(f.Box)
			return true
		}
		a.mergeOrAppend(col, f, opts)
		return true
	}
	return false
}

// assignUnknown matches against each unknown column's seed box, which never widens.
func (a *Assignment) assignUnknown(f Fragment, opts AssignOptions) bool {
	for _, col := range a.Unknown {
		probe := utils.Box{MinX: f.Box.MinX, MinY: col.Box.MinY, MaxX: f.Box.MaxX, MaxY: col.Box.MaxY}
		if utils.OverlapPercent(col.Box, probe) <= opts.UnknownColumnThreshold {
			continue
		}
		a.mergeOrAppend(col, f, opts)
		return true
	}
	return false
}

// mergeOrAppend joins f to the column's last fragment when the two share at least
// WordMergeThreshold percent of vertical extent, and appends it otherwise.
func (a *Assignment) mergeOrAppend(col *Column, f Fragment, opts AssignOptions) {
	prev, ok := col.last()
	if ok {
		probe := utils.Box{MinX: prev.Box.MinX, MinY: f.Box.MinY, MaxX: prev.Box.MaxX, MaxY: f.Box.MaxY}
		if utils.OverlapPercent(prev.Box, probe) >= opts.WordMergeThreshold {
			col.Fragments[len(col.Fragments)-1] = prev.join(f)
			a.MergedWords++
			return
		}
	}
	col.Fragments = append(col.Fragments, f)
}
