package table

// Options configures a reconstruction pass.
type Options struct {
	Assign AssignOptions
	// RowThreshold is the overlap (percent) above which a fragment joins an existing row.
	RowThreshold float64
	// Columns are optional predefined columns, tried in order before unknown columns.
	Columns []ColumnSpec
	// Headers optionally relabels the cleaned grid under canonical header names.
	Headers []string
	// OnDrop observes fragments the row aligner could not place.
	OnDrop DropHook
}

// DefaultOptions returns the standard thresholds with no predefined columns or headers.
func DefaultOptions() Options {
	return Options{
		Assign:       DefaultAssignOptions(),
		RowThreshold: 10,
	}
}

// Diagnostics reports what happened during a reconstruction pass.
type Diagnostics struct {
	Fragments        int   `json:"fragments"`
	Columns          int   `json:"columns"`
	UnknownColumns   int   `json:"unknown_columns"`
	MergedWords      int   `json:"merged_words"`
	DroppedFragments int   `json:"dropped_fragments"`
	PostprocessError error `json:"-"`
}

// Result holds the raw grid (generic column names, no cleanup) and the cleaned grid.
type Result struct {
	Raw         Grid        `json:"raw"`
	Table       Grid        `json:"table"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Reconstruct builds a table from fragments sorted top-to-bottom, left-to-right.
// It never fails: a post-processing error leaves Table equal to the unmerged grid and is
// recorded in Diagnostics.
func Reconstruct(fragments []Fragment, opts Options) Result {
	diag := Diagnostics{Fragments: len(fragments)}

	assignment := AssignColumns(opts.Columns, fragments, opts.Assign)
	diag.MergedWords = assignment.MergedWords
	diag.UnknownColumns = len(assignment.Unknown)

	ordered := assignment.Columns()
	diag.Columns = len(ordered)

	input := make([]ColumnFragments, len(ordered))
	for i, c := range ordered {
		input[i] = ColumnFragments{Name: c.ID.DisplayName(), Fragments: c.Fragments}
	}

	ts := &TableStructure{RowThreshold: opts.RowThreshold, OnDrop: opts.OnDrop}
	grid := ts.Build(input)
	diag.DroppedFragments = ts.Dropped()

	cleaned, err := Postprocess(grid, opts.Headers)
	if err != nil {
		diag.PostprocessError = err
		cleaned = grid.Clone()
	}

	return Result{
		Raw:         grid.WithGenericColumns(),
		Table:       cleaned,
		Diagnostics: diag,
	}
}
