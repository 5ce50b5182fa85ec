package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor in row-major order, NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := c * h * w
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks data length matches the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if expected := int(n * c * h * w); len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// Predictions is a [1, F, N] model output read as N predictions of F features each,
// the layout of YOLO detection heads.
type Predictions struct {
	Data     []float32
	Features int
	Count    int
}

// NewPredictions validates a [1, F, N] output shape against its data.
func NewPredictions(data []float32, shape []int64) (Predictions, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return Predictions{}, fmt.Errorf("expected output shape [1, F, N], got %v", shape)
	}
	f, n := int(shape[1]), int(shape[2])
	if f <= 0 || n < 0 {
		return Predictions{}, fmt.Errorf("invalid output shape %v", shape)
	}
	if len(data) != f*n {
		return Predictions{}, fmt.Errorf("output data length %d != expected %d for shape %v", len(data), f*n, shape)
	}
	return Predictions{Data: data, Features: f, Count: n}, nil
}

// At returns feature f of prediction i.
func (p Predictions) At(f, i int) float32 { return p.Data[f*p.Count+i] }
