package recognizer

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/textract"
)

// textractAPI is the part of the Textract client the engine uses.
type textractAPI interface {
	DetectDocumentTextWithContext(ctx aws.Context, input *textract.DetectDocumentTextInput,
		opts ...request.Option) (*textract.DetectDocumentTextOutput, error)
}

// TextractEngine recognizes words with AWS Textract's synchronous text detection.
type TextractEngine struct {
	client textractAPI
}

// NewTextractEngine creates a Textract client from the default AWS credential chain. An
// empty region falls back to the SDK's region resolution (AWS_REGION, shared config).
func NewTextractEngine(region string) (*TextractEngine, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &TextractEngine{client: textract.New(sess)}, nil
}

// Name implements Engine.
func (e *TextractEngine) Name() string { return EngineTextract }

// RecognizeImage implements Engine. Textract reports geometry as fractions of the page;
// boxes are scaled to the image size.
func (e *TextractEngine) RecognizeImage(ctx context.Context, img image.Image) ([]table.Fragment, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	out, err := e.client.DetectDocumentTextWithContext(ctx, &textract.DetectDocumentTextInput{
		Document: &textract.Document{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("textract: %w", err)
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	var frags []table.Fragment
	for _, block := range out.Blocks {
		if aws.StringValue(block.BlockType) != textract.BlockTypeWord {
			continue
		}
		if block.Geometry == nil || block.Geometry.BoundingBox == nil {
			continue
		}
		bb := block.Geometry.BoundingBox
		left, top := aws.Float64Value(bb.Left), aws.Float64Value(bb.Top)
		box := utils.Box{
			MinX: left * w,
			MinY: top * h,
			MaxX: (left + aws.Float64Value(bb.Width)) * w,
			MaxY: (top + aws.Float64Value(bb.Height)) * h,
		}
		frags = append(frags, table.Fragment{
			Text:       aws.StringValue(block.Text),
			Box:        box,
			Confidence: aws.Float64Value(block.Confidence) / 100,
		})
	}

	slog.Debug("Textract recognition finished", "blocks", len(out.Blocks), "words", len(frags))
	return frags, nil
}
