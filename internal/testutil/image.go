package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TableImageConfig describes a synthetic table rendered as an image.
type TableImageConfig struct {
	Cells      [][]string // row-major cell text; "" leaves a cell empty
	CellWidth  int
	CellHeight int
	Margin     int
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTableImageConfig returns a config for SampleTable with the 7x13 basic font.
func DefaultTableImageConfig() TableImageConfig {
	return TableImageConfig{
		Cells:      SampleTable(),
		CellWidth:  120,
		CellHeight: 30,
		Margin:     20,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// Size returns the image dimensions the config renders to.
func (c TableImageConfig) Size() (int, int) {
	cols := 0
	for _, r := range c.Cells {
		cols = max(cols, len(r))
	}
	return 2*c.Margin + cols*c.CellWidth, 2*c.Margin + len(c.Cells)*c.CellHeight
}

// TableBox returns the rectangle enclosing all cells.
func (c TableImageConfig) TableBox() utils.Box {
	w, h := c.Size()
	return utils.Box{
		MinX: float64(c.Margin),
		MinY: float64(c.Margin),
		MaxX: float64(w - c.Margin),
		MaxY: float64(h - c.Margin),
	}
}

// Fragments returns one fragment per non-empty cell, boxed to the rendered text extent,
// in row-major order.
func (c TableImageConfig) Fragments() []table.Fragment {
	lineHeight := c.FontFace.Metrics().Height.Ceil()
	var frags []table.Fragment
	for r, row := range c.Cells {
		for col, text := range row {
			if text == "" {
				continue
			}
			x := float64(c.Margin + col*c.CellWidth + 4)
			y := float64(c.Margin + r*c.CellHeight + (c.CellHeight-lineHeight)/2)
			w := float64(font.MeasureString(c.FontFace, text).Ceil())
			frags = append(frags, table.Fragment{
				Text:       text,
				Box:        utils.Box{MinX: x, MinY: y, MaxX: x + w, MaxY: y + float64(lineHeight)},
				Confidence: 0.99,
			})
		}
	}
	return frags
}

// GenerateTableImage renders the cells and returns the image with the fragments an ideal
// recognizer would report for it.
func GenerateTableImage(c TableImageConfig) (*image.RGBA, []table.Fragment) {
	w, h := c.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{c.Foreground},
		Face: c.FontFace,
	}
	ascent := c.FontFace.Metrics().Ascent.Ceil()

	frags := c.Fragments()
	for _, f := range frags {
		drawer.Dot = fixed.P(int(f.Box.MinX), int(f.Box.MinY)+ascent)
		drawer.DrawString(f.Text)
	}
	return img, frags
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// SaveImage writes img to path, picking the format from the extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	data, err := utils.EncodePNG(img)
	require.NoError(t, err)
	return data
}
