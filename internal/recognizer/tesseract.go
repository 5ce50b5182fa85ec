//go:build tesseract

package recognizer

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes words with a local Tesseract installation.
type TesseractEngine struct {
	language      string
	tessdataDir   string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine returns a Tesseract engine for the given language. tessdataDir may
// be empty to use the system language data.
func NewTesseractEngine(language, tessdataDir string) (Engine, error) {
	return &TesseractEngine{
		language:      language,
		tessdataDir:   tessdataDir,
		clientFactory: gosseract.NewClient,
	}, nil
}

// Name implements Engine.
func (e *TesseractEngine) Name() string { return EngineTesseract }

// RecognizeImage implements Engine with word-level bounding boxes.
func (e *TesseractEngine) RecognizeImage(ctx context.Context, img image.Image) ([]table.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if e.language != "" {
		if err := c.SetLanguage(e.language); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	frags := make([]table.Fragment, 0, len(boxes))
	for _, b := range boxes {
		frags = append(frags, table.Fragment{
			Text:       b.Word,
			Box:        utils.BoxFromRect(b.Box),
			Confidence: b.Confidence / 100,
		})
	}
	return frags, nil
}
