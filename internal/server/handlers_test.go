package server

import (
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/tablo/internal/detector"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/testutil"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
	assert.Positive(t, resp.Runtime.Goroutines)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestModelsHandler(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Models), resp.Count)
	assert.NotEmpty(t, resp.Models)
	assert.Contains(t, resp.Pipeline, "recognizer")
}

func TestDetectHandler(t *testing.T) {
	s, img := newTestServer(t)

	req := newUploadRequest(t, "/tables/detect", "image", "table.png", testutil.EncodePNG(t, img), nil)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 400, resp.Width)
	assert.Equal(t, []utils.Box{testutil.DefaultTableImageConfig().TableBox()}, resp.Regions)
}

func TestExtractHandler_JSON(t *testing.T) {
	s, img := newTestServer(t)

	req := newUploadRequest(t, "/tables/extract", "image", "table.png", testutil.EncodePNG(t, img), nil)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeTable(t, rec)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Found)
	assert.Equal(t, []string{"Item", "Qty", "Price"}, resp.Result.Table.Columns)
	assert.Len(t, resp.Result.Table.Rows, 4)
}

func TestExtractHandler_CSVWithHeaders(t *testing.T) {
	s, img := newTestServer(t)

	req := newUploadRequest(t, "/tables/extract", "image", "table.png", testutil.EncodePNG(t, img),
		map[string]string{"format": "csv", "headers": "Price, Item"})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Price,Item,Qty", lines[0])
	assert.Equal(t, "1.20,Apples,3", lines[2])

	// the shared pipeline keeps its own headers
	assert.Empty(t, s.pipeline.Config().Table.Headers)
}

func TestExtractHandler_Text(t *testing.T) {
	s, img := newTestServer(t)

	req := newUploadRequest(t, "/tables/extract?format=text", "image", "table.png", testutil.EncodePNG(t, img), nil)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Item   | Qty | Price\n"), rec.Body.String())
}

func TestExtractHandler_Errors(t *testing.T) {
	s, img := newTestServer(t)
	png := testutil.EncodePNG(t, img)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "method",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/tables/extract", nil) },
			status: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/tables/extract", strings.NewReader("x"))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "missing file",
			req: func() *http.Request {
				return newUploadRequest(t, "/tables/extract", "", "", nil, map[string]string{"format": "json"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "invalid image",
			req: func() *http.Request {
				return newUploadRequest(t, "/tables/extract", "image", "x.png", []byte("not an image"), nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "unsupported format",
			req: func() *http.Request {
				return newUploadRequest(t, "/tables/extract", "image", "x.png", png, map[string]string{"format": "xml"})
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req())
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestExtractHandler_NoTableFound(t *testing.T) {
	pl, err := pipeline.NewBuilder().
		WithDetector(detector.Static{}).
		WithRecognitionEngine(&recognizer.FileEngine{}).
		Build()
	require.NoError(t, err)
	s := NewServerWithPipeline(pl, Config{})
	defer func() { _ = s.Close() }()

	blank := testutil.CreateTestImage(40, 40, color.White)
	req := newUploadRequest(t, "/tables/extract", "image", "blank.png", testutil.EncodePNG(t, blank), nil)
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeTable(t, rec)
	assert.True(t, resp.Success)
	assert.False(t, resp.Result.Found)
	assert.Empty(t, resp.Result.Table.Columns)
	assert.Empty(t, resp.Result.Regions)
}

func TestExtractHandler_NoPipeline(t *testing.T) {
	s := NewServerWithPipeline(nil, Config{})
	req := newUploadRequest(t, "/tables/extract", "image", "x.png", []byte("x"), nil)
	rec := serve(s, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFragmentsHandler(t *testing.T) {
	s, _ := newTestServer(t)
	frags := testutil.MarshalFragments(t, testutil.SampleFragments())

	t.Run("array", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tables/fragments", strings.NewReader(string(frags)))
		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeTable(t, rec)
		assert.Equal(t, []string{"Item", "Qty", "Price"}, resp.Result.Table.Columns)
		assert.Equal(t, 11, resp.Result.Fragments)
	})

	t.Run("object with headers", func(t *testing.T) {
		body := `{"headers": ["Qty"], "fragments": ` + string(frags) + `}`
		req := httptest.NewRequest(http.MethodPost, "/tables/fragments", strings.NewReader(body))
		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeTable(t, rec)
		assert.Equal(t, []string{"Qty", "Item", "Price"}, resp.Result.Table.Columns)
	})

	t.Run("csv via query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tables/fragments?format=csv&raw=true", strings.NewReader(string(frags)))
		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Body.String(), "column 1,column 2,column 3\n"))
	})

	t.Run("invalid", func(t *testing.T) {
		for _, body := range []string{"", "{", `[{"text": "a", "box": [1, 2]}]`} {
			req := httptest.NewRequest(http.MethodPost, "/tables/fragments", strings.NewReader(body))
			rec := serve(s, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})
}

func TestPDFHandler_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, newUploadRequest(t, "/tables/pdf", "", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, newUploadRequest(t, "/tables/pdf", "pdf", "doc.pdf", []byte("%PDF-1.4"), map[string]string{"page": "1-2"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exactly one page")

	rec = serve(s, newUploadRequest(t, "/tables/pdf", "pdf", "doc.pdf", []byte("garbage"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tablo_http_requests_total")
}

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("  "))
	assert.Equal(t, []string{"a", "b c"}, parseHeaders(" a ,, b c ,"))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodOptions, "/tables/extract", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, rec.Body.String())
}
