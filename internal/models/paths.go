package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	// TableDetection is the YOLO table-region detector exported to ONNX.
	TableDetection = "table-detection.onnx"
	// TableDetectionLarge is the higher-resolution variant of the detector.
	TableDetectionLarge = "table-detection-large.onnx"
)

// Model type categories for organized directory structure.
const (
	TypeDetection = "detection"
	TypeTessdata  = "tessdata"
)

// Default models directory.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "TABLO_MODELS_DIR"

// ProjectRoot walks up from the working directory to the first directory with a go.mod.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// ModelInfo contains metadata about a model.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}

	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := ProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}

	return DefaultModelsDir
}

// ResolveModelPath resolves a model filename to its full path. The organized layout
// (<dir>/<type>/<file>) is preferred; a flat <dir>/<file> is used when it does not exist.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)

	if modelType != "" {
		organizedPath := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organizedPath); err == nil {
			return organizedPath
		}
	}

	return filepath.Join(baseDir, filename)
}

// GetTableDetectionModelPath returns the path for the table detection model.
func GetTableDetectionModelPath(modelsDir string, large bool) string {
	filename := TableDetection
	if large {
		filename = TableDetectionLarge
	}
	return ResolveModelPath(modelsDir, TypeDetection, filename)
}

// GetTessdataDir returns the directory holding tesseract language data, or "" when the
// models directory has none and the system tessdata should be used.
func GetTessdataDir(modelsDir string) string {
	dir := filepath.Join(GetModelsDir(modelsDir), TypeTessdata)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns information about the models tablo knows about.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "table-detection",
			Type:        TypeDetection,
			Description: "YOLO table region detector",
			Filename:    TableDetection,
		},
		{
			Name:        "table-detection-large",
			Type:        TypeDetection,
			Description: "YOLO table region detector, large input",
			Filename:    TableDetectionLarge,
		},
	}
}
