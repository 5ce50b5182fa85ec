package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"golang.org/x/text/unicode/norm"
)

// Recognizer runs an Engine over table regions.
type Recognizer struct {
	engine        Engine
	minConfidence float64
}

// New wraps engine. Fragments reporting a confidence below minConfidence are discarded;
// 0 keeps everything.
func New(engine Engine, minConfidence float64) *Recognizer {
	return &Recognizer{engine: engine, minConfidence: minConfidence}
}

// Engine returns the wrapped engine.
func (r *Recognizer) Engine() Engine { return r.engine }

// Close closes the engine if it holds resources.
func (r *Recognizer) Close() error {
	if c, ok := r.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Recognize returns one fragment list per region, each sorted top to bottom and left to
// right, in image coordinates:
//
//   - no regions: the whole image, as a single list;
//   - one region: the image cropped to the region;
//   - several regions: the whole image once, each fragment given to the first region
//     containing its top-left corner.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, regions []utils.Box) ([][]table.Fragment, error) {
	if img == nil {
		return nil, errors.New("text recognition failed: input image is nil")
	}

	switch {
	case len(regions) == 0:
		frags, err := r.recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		return [][]table.Fragment{r.clean(frags)}, nil

	case len(regions) == 1 && !r.pageCoordinates():
		frags, err := r.recognizeRegion(ctx, img, regions[0])
		if err != nil {
			return nil, err
		}
		return [][]table.Fragment{r.clean(frags)}, nil

	default:
		frags, err := r.recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		parts := PartitionByRegion(r.clean(frags), regions)
		for i := range parts {
			table.SortFragments(parts[i])
		}
		return parts, nil
	}
}

func (r *Recognizer) pageCoordinates() bool {
	pe, ok := r.engine.(pageEngine)
	return ok && pe.PageCoordinates()
}

func (r *Recognizer) recognize(ctx context.Context, img image.Image) ([]table.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frags, err := r.engine.RecognizeImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("text recognition failed: %w", err)
	}
	return frags, nil
}

// recognizeRegion crops img to region and shifts the results back by the crop origin.
func (r *Recognizer) recognizeRegion(ctx context.Context, img image.Image, region utils.Box) ([]table.Fragment, error) {
	rect := region.ToRect(img.Bounds())
	if rect.Empty() {
		slog.Debug("Table region outside image", "region", region.Slice())
		return nil, nil
	}

	frags, err := r.recognize(ctx, utils.CropImageRect(img, rect))
	if err != nil {
		return nil, err
	}
	dx, dy := float64(rect.Min.X), float64(rect.Min.Y)
	for i := range frags {
		frags[i].Box = frags[i].Box.Offset(dx, dy)
	}
	return frags, nil
}

// clean normalizes fragment text, drops empty and low-confidence fragments and sorts the
// rest.
func (r *Recognizer) clean(frags []table.Fragment) []table.Fragment {
	out := make([]table.Fragment, 0, len(frags))
	for _, f := range frags {
		f.Text = cleanText(f.Text)
		if f.Text == "" {
			continue
		}
		if r.minConfidence > 0 && f.Confidence < r.minConfidence {
			continue
		}
		out = append(out, f)
	}
	table.SortFragments(out)
	return out
}

// cleanText applies Unicode NFC and collapses whitespace runs to single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
