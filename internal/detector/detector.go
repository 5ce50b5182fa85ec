package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/tablo/internal/mempool"
	"github.com/MeKo-Tech/tablo/internal/onnx"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/yalue/onnxruntime_go"
)

// YOLO detects table regions with a YOLO model exported to ONNX. It is safe for concurrent
// use; inference calls share one session.
type YOLO struct {
	config     Config
	session    *onnxruntime_go.DynamicAdvancedSession
	inputInfo  onnxruntime_go.InputOutputInfo
	outputInfo onnxruntime_go.InputOutputInfo
	mu         sync.RWMutex
}

// NewYOLO loads the detection model described by config.
func NewYOLO(config Config) (*YOLO, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing table detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"confidence", config.Confidence,
		"iou_threshold", config.IoUThreshold)

	ms, err := openSession(config)
	if err != nil {
		return nil, err
	}

	slog.Debug("Table detector initialized", "input_shape", ms.input.Dimensions, "output_shape", ms.output.Dimensions)
	return &YOLO{
		config:     config,
		session:    ms.session,
		inputInfo:  ms.input,
		outputInfo: ms.output,
	}, nil
}

// Close releases the ONNX session. The runtime environment stays up for other sessions.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			slog.Warn("failed to destroy detector session", "error", err)
		}
		d.session = nil
	}
	return nil
}

// Config returns a copy of the detector's configuration.
func (d *YOLO) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// inputSize is the model's fixed square input, or the configured size for dynamic models.
func (d *YOLO) inputSize() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if dims := d.inputInfo.Dimensions; len(dims) == 4 && dims[3] > 0 {
		return int(dims[3])
	}
	return d.config.InputSize
}

func (d *YOLO) preprocess(img image.Image) (onnx.Tensor, utils.Letterbox, error) {
	boxed, lb, err := utils.LetterboxImage(img, d.inputSize())
	if err != nil {
		return onnx.Tensor{}, utils.Letterbox{}, err
	}
	b := boxed.Bounds()
	buf := mempool.GetFloat32(3 * b.Dx() * b.Dy())
	data, w, h, err := utils.NormalizeImageInto(boxed, buf)
	if err != nil {
		mempool.PutFloat32(buf)
		return onnx.Tensor{}, utils.Letterbox{}, fmt.Errorf("failed to normalize image: %w", err)
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		mempool.PutFloat32(data)
		return onnx.Tensor{}, utils.Letterbox{}, fmt.Errorf("failed to create tensor: %w", err)
	}
	return tensor, lb, nil
}

// run performs one forward pass and copies the prediction output.
func (d *YOLO) run(tensor onnx.Tensor) (onnx.Predictions, error) {
	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return onnx.Predictions{}, fmt.Errorf("invalid tensor: %w", err)
	}

	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	if session == nil {
		return onnx.Predictions{}, errors.New("detector session is closed")
	}

	input, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return onnx.Predictions{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil}
	if err := session.Run([]onnxruntime_go.Value{input}, outputs); err != nil {
		return onnx.Predictions{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if err := outputs[0].Destroy(); err != nil {
			slog.Warn("failed to destroy output tensor", "error", err)
		}
	}()

	out, ok := outputs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return onnx.Predictions{}, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}

	// the output tensor memory is released on Destroy
	data := append([]float32(nil), out.GetData()...)
	return onnx.NewPredictions(data, out.GetShape())
}

// Detect implements Detector: letterbox, inference, confidence filter and NMS. Boxes are
// returned in image pixels ordered by descending confidence.
func (d *YOLO) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	tensor, lb, err := d.preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer mempool.PutFloat32(tensor.Data)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds, err := d.run(tensor)
	if err != nil {
		return nil, err
	}

	cfg := d.Config()
	b := img.Bounds()
	dets := decodePredictions(preds, cfg.Confidence, lb, b.Dx(), b.Dy())
	kept := NonMaxSuppression(dets, cfg.IoUThreshold)

	slog.Debug("Table detection finished",
		"candidates", len(dets),
		"regions", len(kept),
		"duration_ms", time.Since(start).Milliseconds())
	return kept, nil
}

// Warmup runs forward passes on a blank image to reduce first-call latency.
func (d *YOLO) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	size := d.inputSize()
	tensor, _, err := d.preprocess(image.NewRGBA(image.Rect(0, 0, size, size)))
	if err != nil {
		return err
	}
	defer mempool.PutFloat32(tensor.Data)
	for range iterations {
		if _, err := d.run(tensor); err != nil {
			return err
		}
	}
	return nil
}

// ModelInfo describes the loaded model.
func (d *YOLO) ModelInfo() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]interface{}{
		"model_path":    d.config.ModelPath,
		"input_name":    d.inputInfo.Name,
		"output_name":   d.outputInfo.Name,
		"input_shape":   d.inputInfo.Dimensions,
		"output_shape":  d.outputInfo.Dimensions,
		"confidence":    d.config.Confidence,
		"iou_threshold": d.config.IoUThreshold,
		"num_threads":   d.config.NumThreads,
		"gpu": map[string]interface{}{
			"enabled":            d.config.GPU.UseGPU,
			"device_id":          d.config.GPU.DeviceID,
			"memory_limit_bytes": d.config.GPU.GPUMemLimit,
		},
	}
}
