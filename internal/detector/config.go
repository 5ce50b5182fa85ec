package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/MeKo-Tech/tablo/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// Config holds configuration for the YOLO table detector.
type Config struct {
	ModelPath    string         // Path to ONNX detection model
	Confidence   float64        // Minimum class score (default: 0.5)
	IoUThreshold float64        // IoU threshold for NMS (default: 0.45)
	InputSize    int            // Square model input size when the model does not fix it (default: 640)
	NumThreads   int            // Number of CPU threads (default: 0 for auto)
	UseLarge     bool           // Use the large model variant
	GPU          onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:    models.GetTableDetectionModelPath("", false),
		Confidence:   0.5,
		IoUThreshold: 0.45,
		InputSize:    640,
		GPU:          onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath resolves ModelPath under modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetTableDetectionModelPath(modelsDir, c.UseLarge)
}

func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if config.Confidence < 0 || config.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", config.Confidence)
	}
	if config.IoUThreshold < 0 || config.IoUThreshold > 1 {
		return fmt.Errorf("iou threshold must be in [0,1], got %v", config.IoUThreshold)
	}
	if config.InputSize <= 0 || config.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", config.InputSize)
	}
	return onnx.ValidateGPUConfig(config.GPU)
}

func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// validateModelInfo reads the model's single image input and single prediction output.
func validateModelInfo(modelPath string) (onnxruntime_go.InputOutputInfo, onnxruntime_go.InputOutputInfo, error) {
	var none onnxruntime_go.InputOutputInfo

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return none, none, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return none, none, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) != 1 {
		return none, none, fmt.Errorf("expected 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return none, none, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	if len(outputs[0].Dimensions) != 3 {
		return none, none, fmt.Errorf("expected 3D output tensor, got %dD", len(outputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}
