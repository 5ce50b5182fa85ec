package pipeline

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/testutil"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeDetector struct {
	regions []utils.Box
	err     error
	calls   atomic.Int32
	closed  atomic.Bool
}

func (d *fakeDetector) Detect(ctx context.Context, _ image.Image) ([]detector.Detection, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return detector.Static{Regions: d.regions}.Detect(ctx, nil)
}

func (d *fakeDetector) Close() error {
	d.closed.Store(true)
	return nil
}

// fakeEngine returns fixed fragments in page coordinates.
type fakeEngine struct {
	frags []table.Fragment
	err   error
	calls atomic.Int32
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) RecognizeImage(ctx context.Context, _ image.Image) ([]table.Fragment, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return append([]table.Fragment(nil), e.frags...), ctx.Err()
}

func (e *fakeEngine) PageCoordinates() bool { return true }

var _ recognizer.Engine = (*fakeEngine)(nil)

func newTestPipeline(t testing.TB, det detector.Detector, engine recognizer.Engine) *Pipeline {
	t.Helper()

	p, err := NewBuilder().WithDetector(det).WithRecognitionEngine(engine).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// sampleSetup renders the sample table and returns a pipeline that detects its bounds.
func sampleSetup(t testing.TB) (*Pipeline, image.Image, *fakeEngine) {
	t.Helper()

	cfg := testutil.DefaultTableImageConfig()
	img, frags := testutil.GenerateTableImage(cfg)
	engine := &fakeEngine{frags: frags}
	det := &fakeDetector{regions: []utils.Box{cfg.TableBox()}}
	return newTestPipeline(t, det, engine), img, engine
}

func texts(row []table.Value) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.Text
	}
	return out
}
