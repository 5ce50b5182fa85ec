package table

import (
	"strings"
)

// Postprocess cleans a reconstructed grid:
//
//   - rows whose cells are all blank are dropped;
//   - columns with a blank cell in the first row are folded into a neighbor, right to left:
//     into the preceding column, or for the first column as a prefix of the next one;
//   - when headers are given, columns whose name contains a header are joined row-wise into
//     one column named after that header, followed by the columns no header matched.
//
// The input grid is not modified. On error the caller should keep the input grid.
func Postprocess(g Grid, headers []string) (Grid, error) {
	if err := g.Validate(); err != nil {
		return g, err
	}

	out := g.Clone()
	dropEmptyRows(&out)
	foldHeaderlessColumns(&out)
	if len(headers) > 0 {
		out = applyHeaders(out, headers)
	}
	return out, nil
}

func dropEmptyRows(g *Grid) {
	rows := g.Rows[:0]
	var extents []Extent
	for i, r := range g.Rows {
		empty := true
		for _, v := range r {
			if !v.Blank() {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		rows = append(rows, r)
		if g.Extents != nil {
			extents = append(extents, g.Extents[i])
		}
	}
	g.Rows = rows
	if g.Extents != nil {
		g.Extents = extents
	}
}

func foldHeaderlessColumns(g *Grid) {
	if len(g.Rows) == 0 {
		return
	}
	for idx := len(g.Columns) - 1; idx >= 0; idx-- {
		if len(g.Columns) < 2 {
			return
		}
		if !g.Rows[0][idx].Blank() {
			continue
		}
		for _, r := range g.Rows {
			if idx > 0 {
				r[idx-1] = joinValues(r[idx-1], r[idx])
			} else {
				r[1] = joinValues(r[0], r[1])
			}
		}
		g.removeColumn(idx)
	}
}

// joinValues concatenates two cells with a single space, skipping blank sides.
func joinValues(a, b Value) Value {
	switch {
	case a.Blank() && b.Blank():
		if a.Valid || b.Valid {
			return Str("")
		}
		return Value{}
	case a.Blank():
		return b
	case b.Blank():
		return a
	default:
		return Str(a.Text + " " + b.Text)
	}
}

func applyHeaders(g Grid, headers []string) Grid {
	out := Grid{Extents: g.Extents}
	var cols [][]Value
	used := make([]bool, len(g.Columns))

	for _, h := range headers {
		if h == "" {
			continue
		}
		var matched []int
		for i, name := range g.Columns {
			if strings.Contains(name, h) {
				matched = append(matched, i)
				used[i] = true
			}
		}
		if len(matched) == 0 {
			continue
		}

		col := make([]Value, len(g.Rows))
		parts := make([]string, len(matched))
		for r, row := range g.Rows {
			for j, m := range matched {
				parts[j] = strings.TrimSpace(row[m].Text)
			}
			col[r] = Str(strings.TrimSpace(strings.Join(parts, " ")))
		}
		out.Columns = append(out.Columns, h)
		cols = append(cols, col)
	}

	for i, name := range g.Columns {
		if used[i] {
			continue
		}
		out.Columns = append(out.Columns, name)
		cols = append(cols, g.Column(i))
	}

	out.Rows = make([][]Value, len(g.Rows))
	for r := range g.Rows {
		row := make([]Value, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		out.Rows[r] = row
	}
	return out
}
