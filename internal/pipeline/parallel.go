package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNoImages is returned by batch entry points given no input.
var ErrNoImages = errors.New("no images provided")

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageResult struct {
	index  int
	result *TableResult
	err    error
}

// ExtractTables runs ExtractTable on each image in order.
func (p *Pipeline) ExtractTables(ctx context.Context, images []image.Image) ([]*TableResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	out := make([]*TableResult, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.ExtractTableContext(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

// ExtractTablesParallel extracts one table per image with at most MaxWorkers images in
// flight. Every image is an independent reconstruction pass. Results keep the input order;
// a failed image leaves a nil entry and the first failure is returned alongside the partial
// results.
func (p *Pipeline) ExtractTablesParallel(ctx context.Context, images []image.Image, config ParallelConfig) ([]*TableResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if err := p.ready(); err != nil {
		return nil, err
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}

	progress := config.ProgressCallback
	if progress != nil {
		progress.OnStart(len(images))
		defer progress.OnComplete()
	}

	results := make(chan imageResult, len(images))
	go func() {
		var g errgroup.Group
		g.SetLimit(min(config.MaxWorkers, len(images)))
		for i, img := range images {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := p.ExtractTableContext(ctx, img)
				results <- imageResult{index: i, result: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	ordered := make([]*TableResult, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index], errs[r.index] = r.result, r.err
		done++
		if progress != nil {
			if r.err != nil {
				progress.OnError(r.index, r.err)
			}
			progress.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var first error
	for i, err := range errs {
		if err == nil {
			continue
		}
		ordered[i] = nil
		if first == nil {
			first = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, images[i], err)
		}
	}
	return ordered, first
}
