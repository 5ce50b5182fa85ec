package server

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/testutil"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/require"
)

// newTestServer serves the rendered sample table. Recognition replays the fragments the
// image was drawn from, so no OCR engine or model is needed.
func newTestServer(t *testing.T) (*Server, image.Image) {
	t.Helper()

	cfg := testutil.DefaultTableImageConfig()
	img, frags := testutil.GenerateTableImage(cfg)

	pl, err := pipeline.NewBuilder().
		WithDetector(detector.Static{Regions: []utils.Box{cfg.TableBox()}}).
		WithRecognitionEngine(&recognizer.FileEngine{Fragments: frags}).
		Build()
	require.NoError(t, err)

	s := NewServerWithPipeline(pl, Config{MaxUploadMB: 5, TimeoutSec: 5})
	t.Cleanup(func() { _ = s.Close() })
	return s, img
}

func newUploadRequest(t *testing.T, target, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeTable(t *testing.T, rec *httptest.ResponseRecorder) TableResponse {
	t.Helper()
	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
