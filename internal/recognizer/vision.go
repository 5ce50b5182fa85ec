package recognizer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// visionAPI is the part of the image annotator client the engine uses.
type visionAPI interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest,
		opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// VisionEngine recognizes words with Google Cloud Vision document text detection.
type VisionEngine struct {
	client visionAPI
	close  func() error
}

// NewVisionEngine connects to the Vision API. credentialsFile may be empty to use
// application default credentials.
func NewVisionEngine(ctx context.Context, credentialsFile string) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionEngine{client: client, close: client.Close}, nil
}

// Name implements Engine.
func (e *VisionEngine) Name() string { return EngineVision }

// Close releases the client connection.
func (e *VisionEngine) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// RecognizeImage implements Engine.
func (e *VisionEngine) RecognizeImage(ctx context.Context, img image.Image) ([]table.Fragment, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return nil, fmt.Errorf("vision: %s", st.GetMessage())
	}

	var frags []table.Fragment
	for _, page := range r.GetFullTextAnnotation().GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				for _, word := range para.GetWords() {
					if f, ok := visionWord(word); ok {
						frags = append(frags, f)
					}
				}
			}
		}
	}

	slog.Debug("Vision recognition finished", "words", len(frags))
	return frags, nil
}

func visionWord(word *visionpb.Word) (table.Fragment, bool) {
	var sb strings.Builder
	for _, s := range word.GetSymbols() {
		sb.WriteString(s.GetText())
	}

	verts := word.GetBoundingBox().GetVertices()
	if len(verts) == 0 {
		return table.Fragment{}, false
	}
	box := utils.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, v := range verts {
		x, y := float64(v.GetX()), float64(v.GetY())
		box.MinX = math.Min(box.MinX, x)
		box.MinY = math.Min(box.MinY, y)
		box.MaxX = math.Max(box.MaxX, x)
		box.MaxY = math.Max(box.MaxY, y)
	}

	return table.Fragment{Text: sb.String(), Box: box, Confidence: float64(word.GetConfidence())}, true
}
