package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/tablo/internal/table"
)

// Output formats understood by Format.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the supported output formats.
func Formats() []string { return []string{FormatJSON, FormatCSV, FormatText} }

// OutputOptions controls how a result is rendered.
type OutputOptions struct {
	Format string
	// Raw renders the unmerged grid with generic column names instead of the cleaned one.
	Raw bool
	// IncludeExtents adds the row extent columns to CSV and text output.
	IncludeExtents bool
}

// Format renders res in the requested format. JSON always carries the whole result.
func Format(res *TableResult, opts OutputOptions) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	grid := res.Table
	if opts.Raw {
		grid = res.Raw
	}
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		return ToJSON(res)
	case FormatCSV:
		return ToCSV(grid, opts.IncludeExtents)
	case FormatText:
		return ToPlainText(grid, opts.IncludeExtents), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// ToJSON serializes a single result to pretty JSON.
func ToJSON(res *TableResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONResults serializes several results to pretty JSON.
func ToJSONResults(results []*TableResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var extentColumns = []string{"row_min_x", "row_max_x", "row_min_y", "row_max_y"}

// records returns the header and rows as strings, null cells as "". Extent columns are only
// added when the grid carries one extent per row.
func records(g table.Grid, includeExtents bool) [][]string {
	withExtents := includeExtents && len(g.Extents) == len(g.Rows) && len(g.Rows) > 0

	header := append([]string(nil), g.Columns...)
	if withExtents {
		header = append(header, extentColumns...)
	}
	out := [][]string{header}
	for i, row := range g.Strings() {
		if withExtents {
			e := g.Extents[i]
			row = append(row, formatCoord(e.MinX), formatCoord(e.MaxX), formatCoord(e.MinY), formatCoord(e.MaxY))
		}
		out = append(out, row)
	}
	return out
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ToCSV exports the grid as CSV with a header row.
func ToCSV(g table.Grid, includeExtents bool) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records(g, includeExtents)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainText renders the grid as an aligned text table. An empty grid renders as "".
func ToPlainText(g table.Grid, includeExtents bool) string {
	if len(g.Columns) == 0 {
		return ""
	}
	recs := records(g, includeExtents)

	widths := make([]int, len(recs[0]))
	for _, r := range recs {
		for i, cell := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(cell))
			}
		}
	}

	var sb strings.Builder
	writeLine := func(cells []string) {
		for i := range widths {
			if i > 0 {
				sb.WriteString(" | ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(cell)
			if i < len(widths)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			}
		}
		sb.WriteString("\n")
	}

	writeLine(recs[0])
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	sb.WriteString(strings.Join(sep, "-+-"))
	sb.WriteString("\n")
	for _, r := range recs[1:] {
		writeLine(r)
	}
	return sb.String()
}
