package detector

import (
	"context"
	"image"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	boxes := []utils.Box{utils.NewBox(0, 0, 10, 10), utils.NewBox(20, 0, 30, 10)}
	dets, err := Static{Regions: boxes}.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, boxes, Boxes(dets))

	dets, err = Static{}.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestStatic_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Static{}.Detect(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWholeImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 120, 80))
	dets, err := WholeImage{}.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, utils.NewBox(0, 0, 120, 80), dets[0].Box)

	dets, err = WholeImage{}.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Empty(t, dets)
}

var (
	_ Detector = Static{}
	_ Detector = WholeImage{}
	_ Detector = (*YOLO)(nil)
)
