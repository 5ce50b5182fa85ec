//nolint:lll
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/MeKo-Tech/tablo/internal/onnx"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/server"
	"github.com/MeKo-Tech/tablo/internal/table"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for the tablo application.
// It is loaded from configuration files, environment variables and command-line flags.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Table      TableConfig      `mapstructure:"table" yaml:"table" json:"table"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch" json:"batch"`
	GPU        GPUConfig        `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DetectorConfig contains table-region detection settings.
type DetectorConfig struct {
	ModelPath      string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	UseLarge       bool    `mapstructure:"use_large" yaml:"use_large" json:"use_large"`
	Confidence     float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	IoUThreshold   float64 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
	MergeThreshold float64 `mapstructure:"merge_threshold" yaml:"merge_threshold" json:"merge_threshold"`
	InputSize      int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	NumThreads     int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	WholePage      bool    `mapstructure:"whole_page" yaml:"whole_page" json:"whole_page"`
	Warmup         int     `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// RecognizerConfig contains OCR engine settings.
type RecognizerConfig struct {
	Engine            string  `mapstructure:"engine" yaml:"engine" json:"engine"`
	Language          string  `mapstructure:"language" yaml:"language" json:"language"`
	TessdataDir       string  `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`
	FragmentsFile     string  `mapstructure:"fragments_file" yaml:"fragments_file" json:"fragments_file"`
	AWSRegion         string  `mapstructure:"aws_region" yaml:"aws_region" json:"aws_region"`
	VisionCredentials string  `mapstructure:"vision_credentials" yaml:"vision_credentials" json:"vision_credentials"`
	MinConfidence     float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
}

// TableConfig contains the reconstruction thresholds (overlap percentages) and headers.
type TableConfig struct {
	ColumnThreshold        float64  `mapstructure:"column_threshold" yaml:"column_threshold" json:"column_threshold"`
	WordMergeThreshold     float64  `mapstructure:"word_merge_threshold" yaml:"word_merge_threshold" json:"word_merge_threshold"`
	UnknownColumnThreshold float64  `mapstructure:"unknown_column_threshold" yaml:"unknown_column_threshold" json:"unknown_column_threshold"`
	RowThreshold           float64  `mapstructure:"row_threshold" yaml:"row_threshold" json:"row_threshold"`
	MergeUnknown           bool     `mapstructure:"merge_unknown" yaml:"merge_unknown" json:"merge_unknown"`
	Headers                []string `mapstructure:"headers" yaml:"headers" json:"headers"`
	HeadersFile            string   `mapstructure:"headers_file" yaml:"headers_file" json:"headers_file"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format         string `mapstructure:"format" yaml:"format" json:"format"`
	Raw            bool   `mapstructure:"raw" yaml:"raw" json:"raw"`
	IncludeExtents bool   `mapstructure:"include_extents" yaml:"include_extents" json:"include_extents"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"` // bytes, 0 = unlimited
}

// BatchConfig contains settings for multi-image runs.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// GPUConfig contains GPU acceleration settings for the detection model.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = pipeline.Formats()
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	assign := table.DefaultAssignOptions()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Detector: DetectorConfig{
			Confidence:     det.Confidence,
			IoUThreshold:   det.IoUThreshold,
			MergeThreshold: detector.DefaultMergeThreshold,
			InputSize:      det.InputSize,
			NumThreads:     det.NumThreads,
		},
		Recognizer: RecognizerConfig{
			Engine:   rec.Engine,
			Language: rec.Language,
		},
		Table: TableConfig{
			ColumnThreshold:        assign.ColumnThreshold,
			WordMergeThreshold:     assign.WordMergeThreshold,
			UnknownColumnThreshold: assign.UnknownColumnThreshold,
			RowThreshold:           table.DefaultOptions().RowThreshold,
			MergeUnknown:           assign.MergeUnknown,
		},
		Output: OutputConfig{
			Format: pipeline.FormatJSON,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(recognizer.Engines(), c.Recognizer.Engine) {
		return fmt.Errorf("invalid recognizer engine: %s (must be one of: %s)", c.Recognizer.Engine, strings.Join(recognizer.Engines(), ", "))
	}

	// Detector scores are probabilities.
	if err := validateThreshold(c.Detector.Confidence, "detector.confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.IoUThreshold, "detector.iou_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Recognizer.MinConfidence, "recognizer.min_confidence"); err != nil {
		return err
	}

	percentages := []struct {
		name  string
		value float64
	}{
		{"detector.merge_threshold", c.Detector.MergeThreshold},
		{"table.column_threshold", c.Table.ColumnThreshold},
		{"table.word_merge_threshold", c.Table.WordMergeThreshold},
		{"table.unknown_column_threshold", c.Table.UnknownColumnThreshold},
		{"table.row_threshold", c.Table.RowThreshold},
	}
	for _, p := range percentages {
		if err := validatePercent(p.value, p.name); err != nil {
			return err
		}
	}

	if c.Detector.InputSize <= 0 {
		return fmt.Errorf("invalid detector input size: %d (must be positive)", c.Detector.InputSize)
	}
	if c.Detector.NumThreads < 0 {
		return fmt.Errorf("invalid detector threads: %d (must not be negative)", c.Detector.NumThreads)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.MaxDataPerDay < 0 {
		return errors.New("invalid rate limit: limits must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.GPU.Enabled && c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must not be negative)", c.GPU.Device)
	}
	if _, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid gpu.memory_limit: %w", err)
	}

	return nil
}

// TableOptions converts the table section into reconstruction options.
func (c *Config) TableOptions() table.Options {
	opts := table.DefaultOptions()
	opts.Assign = table.AssignOptions{
		ColumnThreshold:        c.Table.ColumnThreshold,
		WordMergeThreshold:     c.Table.WordMergeThreshold,
		UnknownColumnThreshold: c.Table.UnknownColumnThreshold,
		MergeUnknown:           c.Table.MergeUnknown,
	}
	opts.RowThreshold = c.Table.RowThreshold
	opts.Headers = c.Table.Headers
	return opts
}

// ToPipelineConfig converts the configuration into a pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = models.GetModelsDir(c.ModelsDir)

	cfg.Detector.UseLarge = c.Detector.UseLarge
	cfg.Detector.UpdateModelPath(cfg.ModelsDir)
	if c.Detector.ModelPath != "" {
		cfg.Detector.ModelPath = c.Detector.ModelPath
	}
	cfg.Detector.Confidence = c.Detector.Confidence
	cfg.Detector.IoUThreshold = c.Detector.IoUThreshold
	cfg.Detector.InputSize = c.Detector.InputSize
	cfg.Detector.NumThreads = c.Detector.NumThreads
	cfg.Detector.GPU.UseGPU = c.GPU.Enabled
	cfg.Detector.GPU.DeviceID = c.GPU.Device
	if limit, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.Detector.GPU.GPUMemLimit = limit
	}

	cfg.Recognizer = recognizer.Config{
		Engine:            c.Recognizer.Engine,
		Language:          c.Recognizer.Language,
		TessdataDir:       c.Recognizer.TessdataDir,
		FragmentsFile:     c.Recognizer.FragmentsFile,
		AWSRegion:         c.Recognizer.AWSRegion,
		VisionCredentials: c.Recognizer.VisionCredentials,
		MinConfidence:     c.Recognizer.MinConfidence,
	}
	if cfg.Recognizer.TessdataDir == "" {
		cfg.Recognizer.TessdataDir = models.GetTessdataDir(cfg.ModelsDir)
	}

	cfg.Table = c.TableOptions()
	cfg.MergeThreshold = c.Detector.MergeThreshold
	cfg.WholePage = c.Detector.WholePage
	cfg.WarmupIterations = c.Detector.Warmup
	cfg.Parallel.MaxWorkers = c.Batch.Workers
	return cfg
}

// ToServerConfig converts the server section, with the pipeline it serves.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		CORSOrigin:     c.Server.CORSOrigin,
		MaxUploadMB:    c.Server.MaxUploadMB,
		TimeoutSec:     c.Server.TimeoutSec,
		PipelineConfig: c.ToPipelineConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimitEnabled,
			RequestsPerMinute: c.Server.RequestsPerMinute,
			MaxDataPerDay:     c.Server.MaxDataPerDay,
		},
	}
}

// ResolveHeaders returns the configured headers, reading HeadersFile when it is set and
// no inline headers are given.
func (c *Config) ResolveHeaders() ([]string, error) {
	if len(c.Table.Headers) > 0 || c.Table.HeadersFile == "" {
		return c.Table.Headers, nil
	}
	return LoadHeaders(c.Table.HeadersFile)
}

// LoadHeaders reads a YAML list of canonical header names. A mapping with a "headers" key
// is accepted as well.
func LoadHeaders(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read headers file: %w", err)
	}
	return ParseHeaders(data)
}

// ParseHeaders decodes the headers file format. Blank entries are dropped.
func ParseHeaders(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc struct {
			Headers []string `yaml:"headers"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("parse headers: %w", err)
		}
		list = doc.Headers
	}

	out := make([]string, 0, len(list))
	for _, h := range list {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("headers file contains no headers")
	}
	return out, nil
}

func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

func validatePercent(value float64, name string) error {
	if value < 0.0 || value > 100.0 {
		return fmt.Errorf("invalid %s: %f (must be between 0 and 100)", name, value)
	}
	return nil
}
