package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/tablo/internal/common"
	"github.com/MeKo-Tech/tablo/internal/models"
	"github.com/MeKo-Tech/tablo/internal/pdf"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/recognizer"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/MeKo-Tech/tablo/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Time:      time.Now().UTC().Format(time.RFC3339),
		UptimeSec: int64(time.Since(s.started).Seconds()),
		Runtime:   common.ReadRuntimeStats(),
	})
}

// modelsHandler returns the known models and the active pipeline configuration.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modelsDir := ""
	if s.pipeline != nil {
		modelsDir = s.pipeline.Config().ModelsDir
	}

	infos := models.ListAvailableModels()
	list := make([]ModelInfo, len(infos))
	for i, info := range infos {
		path := models.ResolveModelPath(modelsDir, info.Type, info.Filename)
		list[i] = ModelInfo{
			Name:        info.Name,
			Path:        path,
			Type:        info.Type,
			Description: info.Description,
			Available:   models.ValidateModelExists(path) == nil,
		}
	}

	resp := ModelsResponse{Models: list, Count: len(list)}
	if s.pipeline != nil {
		resp.Pipeline = s.pipeline.Info()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detectHandler returns the primary table region of an uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requirePipeline(w) {
		return
	}

	img, err := s.parseImageUpload(w, r)
	if err != nil {
		recordFailure("detect")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	regions, err := s.pipeline.DetectTablesContext(ctx, img)
	if err != nil {
		recordFailure("detect")
		s.writeProcessingError(w, err)
		return
	}
	extractionsTotal.WithLabelValues("detect", "success").Inc()
	extractionDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	b := img.Bounds()
	s.writeJSON(w, http.StatusOK, DetectResponse{
		Success: true,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Regions: regions,
	})
}

// extractHandler reconstructs the table of an uploaded image.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requirePipeline(w) {
		return
	}

	img, err := s.parseImageUpload(w, r)
	if err != nil {
		recordFailure("image")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	pl := s.pipelineFor(parseHeaders(formValue(r, "headers")))
	start := time.Now()
	res, err := pl.ExtractTableContext(ctx, img)
	if err != nil {
		recordFailure("image")
		s.writeProcessingError(w, err)
		return
	}
	recordResult("image", res.Table.NumRows(), time.Since(start).Seconds())

	s.writeTableResult(w, res, outputOptions(r))
}

// fragmentsHandler reconstructs a table from a JSON fragment list without any model.
func (s *Server) fragmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		recordFailure("fragments")
		s.writeErrorResponse(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(len(body)))

	req, err := decodeFragmentsRequest(body)
	if err != nil {
		recordFailure("fragments")
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if hs := parseHeaders(r.URL.Query().Get("headers")); len(hs) > 0 {
		req.Headers = hs
	}

	start := time.Now()
	opts := table.DefaultOptions()
	if s.pipeline != nil {
		opts = s.pipeline.Config().Table
	}
	if len(req.Headers) > 0 {
		opts.Headers = req.Headers
	}
	res := pipeline.ReconstructFragments(req.Fragments, opts)
	recordResult("fragments", res.Table.NumRows(), time.Since(start).Seconds())

	s.writeTableResult(w, res, outputOptions(r))
}

// pdfHandler extracts the table of one page of an uploaded PDF.
func (s *Server) pdfHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requirePipeline(w) {
		return
	}

	data, err := s.readUpload(w, r, "pdf")
	if err != nil {
		recordFailure("pdf")
		return
	}
	page, err := pdf.ParsePage(formValue(r, "page"))
	if err != nil {
		recordFailure("pdf")
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	tmp, err := os.CreateTemp("", "tablo-upload-*.pdf")
	if err != nil {
		recordFailure("pdf")
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		recordFailure("pdf")
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	img, err := pdf.ExtractPageImage(tmp.Name(), page, pdf.Options{UserPassword: formValue(r, "password")})
	if err != nil {
		recordFailure("pdf")
		status := http.StatusBadRequest
		if errors.Is(err, pdf.ErrNoImages) {
			status = http.StatusUnprocessableEntity
		}
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	pl := s.pipelineFor(parseHeaders(formValue(r, "headers")))
	start := time.Now()
	res, err := pl.ExtractTableContext(ctx, img)
	if err != nil {
		recordFailure("pdf")
		s.writeProcessingError(w, err)
		return
	}
	recordResult("pdf", res.Table.NumRows(), time.Since(start).Seconds())

	s.writeTableResult(w, res, outputOptions(r))
}

func decodeFragmentsRequest(body []byte) (FragmentsRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return FragmentsRequest{}, errors.New("empty request body")
	}
	if trimmed[0] == '[' {
		frags, err := recognizer.ReadFragments(bytes.NewReader(trimmed))
		if err != nil {
			return FragmentsRequest{}, err
		}
		return FragmentsRequest{Fragments: frags}, nil
	}

	var req FragmentsRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return FragmentsRequest{}, fmt.Errorf("failed to decode fragments: %w", err)
	}
	return req, nil
}

// pipelineFor returns the shared pipeline, or a view of it applying per-request headers.
func (s *Server) pipelineFor(headers []string) *pipeline.Pipeline {
	if len(headers) == 0 {
		return s.pipeline
	}
	return s.pipeline.WithHeaders(headers)
}

func (s *Server) requirePipeline(w http.ResponseWriter) bool {
	if s.pipeline == nil {
		s.writeErrorResponse(w, "Table pipeline not initialized", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// readUpload reads the multipart file field, writing the error response itself on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, err
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, errors.New("file too large")
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", http.StatusInternalServerError)
		return nil, err
	}
	return data, nil
}

func (s *Server) parseImageUpload(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	data, err := s.readUpload(w, r, "image")
	if err != nil {
		return nil, err
	}
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, err
	}
	return img, nil
}

// formValue reads a form field, falling back to the query string.
func formValue(r *http.Request, key string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

// parseHeaders splits a comma separated header list, dropping blanks.
func parseHeaders(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func outputOptions(r *http.Request) pipeline.OutputOptions {
	raw, _ := strconv.ParseBool(formValue(r, "raw"))
	extents, _ := strconv.ParseBool(formValue(r, "include_extents"))
	return pipeline.OutputOptions{
		Format:         strings.ToLower(formValue(r, "format")),
		Raw:            raw,
		IncludeExtents: extents,
	}
}

func (s *Server) writeTableResult(w http.ResponseWriter, res *pipeline.TableResult, opts pipeline.OutputOptions) {
	switch opts.Format {
	case "", pipeline.FormatJSON:
		s.writeJSON(w, http.StatusOK, TableResponse{Success: true, Result: res})
	case pipeline.FormatCSV, pipeline.FormatText:
		out, err := pipeline.Format(res, opts)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		if opts.Format == pipeline.FormatCSV {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		_, _ = w.Write([]byte(out))
	default:
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", opts.Format), http.StatusBadRequest)
	}
}

func (s *Server) writeProcessingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.writeErrorResponse(w, fmt.Sprintf("Table extraction failed: %v", err), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, TableResponse{Success: false, Error: message})
}
