package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/tablo/internal/common"
	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
)

// TableResult is the outcome of one extraction. When Found is false no table region was
// detected and both grids are empty.
type TableResult struct {
	Found       bool              `json:"found"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Regions     []utils.Box       `json:"regions"`
	Fragments   int               `json:"fragments"`
	Raw         table.Grid        `json:"raw"`
	Table       table.Grid        `json:"table"`
	Diagnostics table.Diagnostics `json:"diagnostics"`
	Warnings    []string          `json:"warnings,omitempty"`
	Processing  struct {
		DetectionNs      int64 `json:"detection_ns"`
		RecognitionNs    int64 `json:"recognition_ns"`
		ReconstructionNs int64 `json:"reconstruction_ns"`
		TotalNs          int64 `json:"total_ns"`
	} `json:"processing"`
}

func emptyGrid() table.Grid {
	return table.Grid{Columns: []string{}, Rows: [][]table.Value{}}
}

func newTableResult(bounds image.Rectangle) *TableResult {
	return &TableResult{
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Regions: []utils.Box{},
		Raw:     emptyGrid(),
		Table:   emptyGrid(),
	}
}

// DetectTables returns the primary table region of img: zero or one box.
func (p *Pipeline) DetectTables(img image.Image) ([]utils.Box, error) {
	return p.DetectTablesContext(context.Background(), img)
}

// DetectTablesContext is like DetectTables but allows cancellation via context.
func (p *Pipeline) DetectTablesContext(ctx context.Context, img image.Image) ([]utils.Box, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets, err := p.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("table detection failed: %w", err)
	}

	merged := detector.MergeBoxes(detector.Boxes(dets), p.cfg.MergeThreshold)
	primary, ok := detector.SelectPrimaryTable(merged)

	slog.Debug("Table regions selected",
		"detections", len(dets),
		"merged", len(merged),
		"found", ok)

	if !ok {
		return []utils.Box{}, nil
	}
	return []utils.Box{primary}, nil
}

// ExtractTable detects the primary table in img, recognizes the text inside it and
// reconstructs the grid.
func (p *Pipeline) ExtractTable(img image.Image) (*TableResult, error) {
	return p.ExtractTableContext(context.Background(), img)
}

// ExtractTableContext is like ExtractTable but allows cancellation via context.
func (p *Pipeline) ExtractTableContext(ctx context.Context, img image.Image) (*TableResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}

	total := common.NewNamedTimer("total")
	res := newTableResult(img.Bounds())

	detTimer := common.NewNamedTimer("detection")
	regions, err := p.DetectTablesContext(ctx, img)
	res.Processing.DetectionNs = detTimer.Stop().Nanoseconds()
	if err != nil {
		return nil, err
	}
	res.Regions = regionsOrEmpty(regions)

	if len(regions) == 0 {
		res.Processing.TotalNs = total.Stop().Nanoseconds()
		slog.Debug("No table detected", "width", res.Width, "height", res.Height)
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recTimer := common.NewNamedTimer("recognition")
	lists, err := p.Recognizer.Recognize(ctx, img, regions)
	res.Processing.RecognitionNs = recTimer.Stop().Nanoseconds()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var frags []table.Fragment
	if len(lists) > 0 {
		frags = lists[0]
	}

	recoTimer := common.NewNamedTimer("reconstruction")
	p.reconstructInto(res, frags)
	res.Processing.ReconstructionNs = recoTimer.Stop().Nanoseconds()
	res.Found = true
	res.Processing.TotalNs = total.Stop().Nanoseconds()

	slog.Debug("Table extracted",
		"fragments", len(frags),
		"columns", len(res.Table.Columns),
		"rows", res.Table.NumRows(),
		"dropped", res.Diagnostics.DroppedFragments,
		detTimer.Attr(),
		recTimer.Attr(),
		total.Attr())
	return res, nil
}

// ReconstructFragments rebuilds a table from already recognized fragments without any
// image. The fragments are treated as one table.
func (p *Pipeline) ReconstructFragments(frags []table.Fragment) *TableResult {
	return ReconstructFragments(frags, p.cfg.Table)
}

// ReconstructFragments is the model-free entry point: it needs no detector or recognizer.
func ReconstructFragments(frags []table.Fragment, opts table.Options) *TableResult {
	total := common.NewNamedTimer("total")
	res := newTableResult(image.Rectangle{})

	sorted := make([]table.Fragment, len(frags))
	copy(sorted, frags)
	table.SortFragments(sorted)

	if len(sorted) > 0 {
		boxes := make([]utils.Point, 0, 2*len(sorted))
		for _, f := range sorted {
			boxes = append(boxes, f.Box.TopLeft(), utils.Point{X: f.Box.MaxX, Y: f.Box.MaxY})
		}
		res.Regions = []utils.Box{utils.BoundingBox(boxes)}
	}

	t := common.NewNamedTimer("reconstruction")
	reconstructWith(res, sorted, opts)
	res.Processing.ReconstructionNs = t.Stop().Nanoseconds()
	res.Found = len(sorted) > 0
	res.Processing.TotalNs = total.Stop().Nanoseconds()
	return res
}

func (p *Pipeline) reconstructInto(res *TableResult, frags []table.Fragment) {
	reconstructWith(res, frags, p.cfg.Table)
}

func reconstructWith(res *TableResult, frags []table.Fragment, opts table.Options) {
	out := table.Reconstruct(frags, opts)
	res.Fragments = len(frags)
	res.Raw = out.Raw
	res.Table = out.Table
	res.Diagnostics = out.Diagnostics
	if res.Raw.Rows == nil {
		res.Raw.Rows = [][]table.Value{}
	}
	if res.Table.Rows == nil {
		res.Table.Rows = [][]table.Value{}
	}
	if res.Raw.Columns == nil {
		res.Raw.Columns = []string{}
	}
	if res.Table.Columns == nil {
		res.Table.Columns = []string{}
	}

	if err := out.Diagnostics.PostprocessError; err != nil {
		slog.Warn("Table post-processing failed, keeping unmerged grid", "error", err)
		res.Warnings = append(res.Warnings, "postprocess: "+err.Error())
	}
}
