package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/testutil"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizedDetector fails for images of a given width and otherwise reports the whole image.
type sizedDetector struct {
	failWidth int
}

func (d sizedDetector) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if img.Bounds().Dx() == d.failWidth {
		return nil, errBoom
	}
	return detector.WholeImage{}.Detect(ctx, img)
}

func TestDefaultParallelConfig(t *testing.T) {
	cfg := DefaultParallelConfig()
	assert.Positive(t, cfg.MaxWorkers)
	assert.Nil(t, cfg.ProgressCallback)
	assert.Nil(t, cfg.ErrorHandler)
}

func TestExtractTablesParallel_EmptyInput(t *testing.T) {
	p := newTestPipeline(t, &fakeDetector{}, &fakeEngine{})
	res, err := p.ExtractTablesParallel(context.Background(), nil, DefaultParallelConfig())
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Nil(t, res)
}

func TestExtractTablesParallel_NilPipeline(t *testing.T) {
	var p *Pipeline
	images := []image.Image{testutil.CreateTestImage(10, 10, color.White)}
	_, err := p.ExtractTablesParallel(context.Background(), images, DefaultParallelConfig())
	assert.ErrorContains(t, err, "pipeline not initialized")
}

func TestExtractTablesParallel_OrderedResults(t *testing.T) {
	p, img, _ := sampleSetup(t)

	images := make([]image.Image, 0, 9)
	for i := range 9 {
		if i%3 == 1 {
			images = append(images, testutil.CreateTestImage(400+i, 180, color.White))
			continue
		}
		images = append(images, img)
	}

	results, err := p.ExtractTablesParallel(context.Background(), images, ParallelConfig{MaxWorkers: 4})
	require.NoError(t, err)
	require.Len(t, results, len(images))
	for i, res := range results {
		require.NotNil(t, res, "result %d", i)
		assert.Equal(t, images[i].Bounds().Dx(), res.Width, "result %d", i)
		assert.Equal(t, []string{"Item", "Qty", "Price"}, res.Table.Columns)
	}
}

func TestExtractTablesParallel_ErrorHandler(t *testing.T) {
	p := newTestPipeline(t, sizedDetector{failWidth: 13}, &fakeEngine{})
	images := []image.Image{
		testutil.CreateTestImage(10, 10, color.White),
		testutil.CreateTestImage(13, 10, color.White),
		testutil.CreateTestImage(11, 10, color.White),
	}

	var mu sync.Mutex
	var failed []int
	cfg := ParallelConfig{
		MaxWorkers: 2,
		ErrorHandler: func(i int, _ image.Image, _ error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, i)
		},
	}

	results, err := p.ExtractTablesParallel(context.Background(), images, cfg)
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "image 1")
	assert.Equal(t, []int{1}, failed)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
}

func TestExtractTablesParallel_Cancelled(t *testing.T) {
	p := newTestPipeline(t, &fakeDetector{regions: []utils.Box{{MaxX: 5, MaxY: 5}}}, &fakeEngine{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images := []image.Image{
		testutil.CreateTestImage(10, 10, color.White),
		testutil.CreateTestImage(10, 10, color.White),
	}
	_, err := p.ExtractTablesParallel(ctx, images, ParallelConfig{MaxWorkers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingProgress struct {
	started, completed bool
	total, last        int
	errors             []int
}

func (r *recordingProgress) OnStart(total int) {
	r.started, r.total = true, total
}

func (r *recordingProgress) OnProgress(current, _ int) {
	r.last = current
}

func (r *recordingProgress) OnComplete() {
	r.completed = true
}

func (r *recordingProgress) OnError(index int, _ error) {
	r.errors = append(r.errors, index)
}

func TestExtractTablesParallel_Progress(t *testing.T) {
	p := newTestPipeline(t, sizedDetector{failWidth: 7}, &fakeEngine{})
	images := []image.Image{
		testutil.CreateTestImage(7, 7, color.White),
		testutil.CreateTestImage(8, 8, color.White),
	}
	progress := &recordingProgress{}

	_, err := p.ExtractTablesParallel(context.Background(), images, ParallelConfig{MaxWorkers: 2, ProgressCallback: progress})
	require.Error(t, err)
	assert.True(t, progress.started)
	assert.True(t, progress.completed)
	assert.Equal(t, 2, progress.total)
	assert.Equal(t, 2, progress.last)
	assert.Equal(t, []int{0}, progress.errors)
}

func TestExtractTables_Sequential(t *testing.T) {
	p, img, engine := sampleSetup(t)

	results, err := p.ExtractTables(context.Background(), []image.Image{img, img})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), engine.calls.Load())

	_, err = p.ExtractTables(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
}
