package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// LetterboxFill is the padding color used by YOLO-style letterboxing.
var LetterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox describes how an image was scaled and padded into a square model input.
type Letterbox struct {
	Scale float64
	PadX  int
	PadY  int
	Size  int
}

// ToImage maps a box from letterboxed input coordinates back to the source image.
func (l Letterbox) ToImage(b Box) Box {
	if l.Scale == 0 {
		return b
	}
	return Box{
		MinX: (b.MinX - float64(l.PadX)) / l.Scale,
		MinY: (b.MinY - float64(l.PadY)) / l.Scale,
		MaxX: (b.MaxX - float64(l.PadX)) / l.Scale,
		MaxY: (b.MaxY - float64(l.PadY)) / l.Scale,
	}
}

// LetterboxImage resizes img to fit a size x size square preserving aspect ratio and pads
// the remainder symmetrically with LetterboxFill.
func LetterboxImage(img image.Image, size int) (image.Image, Letterbox, error) {
	if img == nil {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("invalid size: %d", size)}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("empty image: %dx%d", w, h)}
	}

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	canvas := imaging.New(size, size, LetterboxFill)
	out := imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return out, Letterbox{Scale: scale, PadX: padX, PadY: padY, Size: size}, nil
}

// NormalizeImage converts an image into a float32 NCHW RGB buffer with values in [0, 1].
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	return NormalizeImageInto(img, nil)
}

// NormalizeImageInto is like NormalizeImage but fills dst when it holds at least 3*w*h
// elements. The returned slice has exactly 3*w*h elements.
func NormalizeImageInto(img image.Image, dst []float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	plane := w * h
	data := dst
	if cap(data) < 3*plane {
		data = make([]float32, 3*plane)
	}
	data = data[:3*plane]

	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			i := x * 4
			idx := y*w + x
			data[idx] = float32(row[i]) / 255.0
			data[plane+idx] = float32(row[i+1]) / 255.0
			data[2*plane+idx] = float32(row[i+2]) / 255.0
		}
	}
	return data, w, h, nil
}

// CropImageRect crops an image to the given rectangle. The result starts at the origin.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// CropImageBox crops an image using a float Box.
func CropImageBox(img image.Image, box Box) image.Image {
	return CropImageRect(img, box.ToRect(img.Bounds()))
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
