package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/tablo/internal/table"
)

// Engine names accepted by NewEngine.
const (
	EngineTesseract = "tesseract"
	EngineTextract  = "textract"
	EngineVision    = "vision"
	EngineFragments = "fragments"
)

var (
	// ErrEngineUnavailable is returned for engines not compiled into this binary.
	ErrEngineUnavailable = errors.New("recognizer: engine not available in this build")
	// ErrUnknownEngine is returned by NewEngine for an unrecognized engine name.
	ErrUnknownEngine = errors.New("recognizer: unknown engine")
)

// Engine reads words and their bounding boxes from an image. Boxes are relative to the
// image's origin.
type Engine interface {
	Name() string
	RecognizeImage(ctx context.Context, img image.Image) ([]table.Fragment, error)
}

// pageEngine is implemented by engines whose fragments are always in full-page
// coordinates, whatever image they are given.
type pageEngine interface {
	PageCoordinates() bool
}

// Config selects and configures an engine.
type Config struct {
	Engine            string
	Language          string
	TessdataDir       string
	FragmentsFile     string
	AWSRegion         string
	VisionCredentials string
	MinConfidence     float64
}

// DefaultConfig returns the tesseract engine with English language data.
func DefaultConfig() Config {
	return Config{
		Engine:   EngineTesseract,
		Language: "eng",
	}
}

// Engines lists the engine names NewEngine understands.
func Engines() []string {
	return []string{EngineTesseract, EngineTextract, EngineVision, EngineFragments}
}

// NewEngine constructs the engine named by cfg.Engine.
func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Engine {
	case EngineTesseract:
		return NewTesseractEngine(cfg.Language, cfg.TessdataDir)
	case EngineTextract:
		e, err := NewTextractEngine(cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineVision:
		e, err := NewVisionEngine(ctx, cfg.VisionCredentials)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineFragments:
		if cfg.FragmentsFile == "" {
			return nil, errors.New("fragments engine needs a fragments file")
		}
		frags, err := LoadFragmentsFile(cfg.FragmentsFile)
		if err != nil {
			return nil, err
		}
		return &FileEngine{Fragments: frags}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}
