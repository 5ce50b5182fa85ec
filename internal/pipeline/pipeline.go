package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
)

// Config holds configuration for the table pipeline and its components.
type Config struct {
	ModelsDir  string
	Detector   detector.Config
	Recognizer recognizer.Config
	Table      table.Options
	// MergeThreshold is the overlap percentage above which detected regions are merged.
	MergeThreshold float64
	// WholePage skips the detection model and treats the whole image as the table.
	WholePage        bool
	WarmupIterations int // optional warmup runs to reduce first-run latency

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:      models.GetModelsDir(""),
		Detector:       detector.DefaultConfig(),
		Recognizer:     recognizer.DefaultConfig(),
		Table:          table.DefaultOptions(),
		MergeThreshold: detector.DefaultMergeThreshold,
		Parallel:       DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	detector detector.Detector
	engine   recognizer.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderWithConfig starts from an existing configuration, e.g. one loaded from a file.
func NewBuilderWithConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelsDir sets the models directory and updates the detector model path.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
	return b
}

// WithDetectorModelPath overrides the detector model path directly.
func (b *Builder) WithDetectorModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
	}
	return b
}

// WithLargeModel toggles the large detection model variant.
func (b *Builder) WithLargeModel(large bool) *Builder {
	b.cfg.Detector.UseLarge = large
	b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
	return b
}

// WithDetectorThresholds sets the minimum detection confidence and the NMS IoU threshold.
func (b *Builder) WithDetectorThresholds(confidence, iou float64) *Builder {
	if confidence > 0 {
		b.cfg.Detector.Confidence = confidence
	}
	if iou > 0 {
		b.cfg.Detector.IoUThreshold = iou
	}
	return b
}

// WithInputSize sets the square detector input size.
func (b *Builder) WithInputSize(size int) *Builder {
	if size > 0 {
		b.cfg.Detector.InputSize = size
	}
	return b
}

// WithMergeThreshold sets the region merge overlap percentage.
func (b *Builder) WithMergeThreshold(threshold float64) *Builder {
	if threshold > 0 {
		b.cfg.MergeThreshold = threshold
	}
	return b
}

// WithWholePage skips table detection.
func (b *Builder) WithWholePage(enabled bool) *Builder {
	b.cfg.WholePage = enabled
	return b
}

// WithThreads sets the detector intra-op thread count (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.NumThreads = n
	}
	return b
}

// WithEngine selects the text recognition engine by name.
func (b *Builder) WithEngine(name string) *Builder {
	if name != "" {
		b.cfg.Recognizer.Engine = name
	}
	return b
}

// WithLanguage sets the recognition language.
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.Recognizer.Language = lang
	}
	return b
}

// WithFragmentsFile selects the fragments engine reading from path.
func (b *Builder) WithFragmentsFile(path string) *Builder {
	if path != "" {
		b.cfg.Recognizer.Engine = recognizer.EngineFragments
		b.cfg.Recognizer.FragmentsFile = path
	}
	return b
}

// WithAWSRegion sets the region used by the textract engine.
func (b *Builder) WithAWSRegion(region string) *Builder {
	b.cfg.Recognizer.AWSRegion = region
	return b
}

// WithVisionCredentials sets the credentials file used by the vision engine.
func (b *Builder) WithVisionCredentials(path string) *Builder {
	b.cfg.Recognizer.VisionCredentials = path
	return b
}

// WithMinConfidence drops recognized words below the given confidence.
func (b *Builder) WithMinConfidence(conf float64) *Builder {
	if conf >= 0 {
		b.cfg.Recognizer.MinConfidence = conf
	}
	return b
}

// WithTableOptions replaces the reconstruction options.
func (b *Builder) WithTableOptions(opts table.Options) *Builder {
	b.cfg.Table = opts
	return b
}

// WithHeaders sets the canonical header names applied to the cleaned grid.
func (b *Builder) WithHeaders(headers []string) *Builder {
	cleaned := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}
	b.cfg.Table.Headers = cleaned
	return b
}

// WithColumns sets predefined column boundaries.
func (b *Builder) WithColumns(columns []table.ColumnSpec) *Builder {
	b.cfg.Table.Columns = columns
	return b
}

// WithDropHook observes fragments the row aligner could not place.
func (b *Builder) WithDropHook(hook table.DropHook) *Builder {
	b.cfg.Table.OnDrop = hook
	return b
}

// WithGPU enables GPU acceleration for the detector.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Detector.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the GPU memory limit.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Detector.GPU.GPUMemLimit = limitBytes
	return b
}

// WithWarmupIterations sets model warmup runs to reduce cold-start latency.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.WarmupIterations = n
	}
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// WithDetector injects a ready detector instead of loading the model.
func (b *Builder) WithDetector(d detector.Detector) *Builder {
	b.detector = d
	return b
}

// WithRecognitionEngine injects a ready engine instead of constructing one from config.
func (b *Builder) WithRecognitionEngine(e recognizer.Engine) *Builder {
	b.engine = e
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that required files exist and the configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.MergeThreshold < 0 || b.cfg.MergeThreshold > 100 {
		return fmt.Errorf("merge threshold must be in [0,100], got %v", b.cfg.MergeThreshold)
	}
	if b.cfg.Table.RowThreshold < 0 || b.cfg.Table.RowThreshold > 100 {
		return fmt.Errorf("row threshold must be in [0,100], got %v", b.cfg.Table.RowThreshold)
	}
	if b.detector == nil && !b.cfg.WholePage {
		if b.cfg.Detector.ModelPath == "" {
			return errors.New("detector model path is empty")
		}
		if _, err := os.Stat(b.cfg.Detector.ModelPath); err != nil {
			return fmt.Errorf("detector model not found: %s", b.cfg.Detector.ModelPath)
		}
	}
	if b.engine == nil && b.cfg.Recognizer.Engine == recognizer.EngineFragments {
		if _, err := os.Stat(b.cfg.Recognizer.FragmentsFile); err != nil {
			return fmt.Errorf("fragments file not found: %s", b.cfg.Recognizer.FragmentsFile)
		}
	}
	return nil
}

// Pipeline wires together table detection, text recognition and reconstruction.
type Pipeline struct {
	cfg        Config
	Detector   detector.Detector
	Recognizer *recognizer.Recognizer
}

// Build initializes the pipeline components.
func (b *Builder) Build() (*Pipeline, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is like Build; ctx bounds engine client construction.
func (b *Builder) BuildContext(ctx context.Context) (*Pipeline, error) {
	if b.detector == nil && !b.cfg.WholePage && b.cfg.Detector.ModelPath == "" {
		b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	det := b.detector
	if det == nil {
		if b.cfg.WholePage {
			det = detector.WholeImage{}
		} else {
			yolo, err := detector.NewYOLO(b.cfg.Detector)
			if err != nil {
				return nil, fmt.Errorf("init detector: %w", err)
			}
			if b.cfg.WarmupIterations > 0 {
				if err := yolo.Warmup(b.cfg.WarmupIterations); err != nil {
					_ = yolo.Close()
					return nil, fmt.Errorf("detector warmup failed: %w", err)
				}
			}
			det = yolo
		}
	}

	engine := b.engine
	if engine == nil {
		e, err := recognizer.NewEngine(ctx, b.cfg.Recognizer)
		if err != nil {
			closeDetector(det)
			return nil, fmt.Errorf("init recognizer: %w", err)
		}
		engine = e
	}

	return &Pipeline{
		cfg:        b.cfg,
		Detector:   det,
		Recognizer: recognizer.New(engine, b.cfg.Recognizer.MinConfidence),
	}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases all resources.
func (p *Pipeline) Close() error {
	var firstErr error
	if p.Recognizer != nil {
		if err := p.Recognizer.Close(); err != nil {
			firstErr = err
		}
		p.Recognizer = nil
	}
	if p.Detector != nil {
		if err := closeDetector(p.Detector); err != nil && firstErr == nil {
			firstErr = err
		}
		p.Detector = nil
	}
	return firstErr
}

func closeDetector(d detector.Detector) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WithHeaders returns a pipeline sharing p's detector and recognizer that applies the given
// canonical headers. Only the original pipeline must be closed.
func (p *Pipeline) WithHeaders(headers []string) *Pipeline {
	view := *p
	view.cfg.Table.Headers = slices.Clone(headers)
	return &view
}

// Info returns a summary of the configured components.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"merge_threshold": p.cfg.MergeThreshold,
		"row_threshold":   p.cfg.Table.RowThreshold,
		"headers":         p.cfg.Table.Headers,
		"whole_page":      p.cfg.WholePage,
	}
	if y, ok := p.Detector.(*detector.YOLO); ok {
		info["detector"] = y.ModelInfo()
	} else {
		info["detector"] = fmt.Sprintf("%T", p.Detector)
	}
	if p.Recognizer != nil {
		info["recognizer"] = map[string]interface{}{
			"engine":         p.Recognizer.Engine().Name(),
			"min_confidence": p.cfg.Recognizer.MinConfidence,
		}
	}
	return info
}

func (p *Pipeline) ready() error {
	if p == nil || p.Detector == nil || p.Recognizer == nil {
		return errors.New("pipeline not initialized")
	}
	return nil
}

// regionsOrEmpty guarantees a non-nil slice for JSON output.
func regionsOrEmpty(boxes []utils.Box) []utils.Box {
	if boxes == nil {
		return []utils.Box{}
	}
	return boxes
}
