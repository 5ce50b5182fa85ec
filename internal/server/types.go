package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/tablo/internal/common"
	"github.com/MeKo-Tech/tablo/internal/pipeline"
	"github.com/MeKo-Tech/tablo/internal/table"
	"github.com/MeKo-Tech/tablo/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	limiter     *RateLimiter
	started     time.Time
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	RateLimit      RateLimitConfig
}

// Addr returns the listen address.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string              `json:"status"`
	Version   string              `json:"version,omitempty"`
	Time      string              `json:"time"`
	UptimeSec int64               `json:"uptime_sec"`
	Runtime   common.RuntimeStats `json:"runtime"`
}

// ModelInfo describes one model file the server knows about.
type ModelInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	Models   []ModelInfo            `json:"models"`
	Count    int                    `json:"count"`
	Pipeline map[string]interface{} `json:"pipeline,omitempty"`
}

// DetectResponse is returned by POST /tables/detect.
type DetectResponse struct {
	Success bool        `json:"success"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Regions []utils.Box `json:"regions"`
}

// TableResponse wraps an extraction result.
type TableResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.TableResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// FragmentsRequest is the object form of a POST /tables/fragments body. A bare JSON array
// of fragments is accepted as well.
type FragmentsRequest struct {
	Fragments []table.Fragment `json:"fragments"`
	Headers   []string         `json:"headers,omitempty"`
}

// NewServer builds the pipeline from config and creates a server around it.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilderWithConfig(config.PipelineConfig).
		WithDropHook(countDropped).
		Build()
	if err != nil {
		return nil, err
	}
	return NewServerWithPipeline(pl, config), nil
}

// NewServerWithPipeline creates a server around an already built pipeline. The server takes
// ownership and closes it in Close.
func NewServerWithPipeline(pl *pipeline.Pipeline, config Config) *Server {
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 30
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}

	s := &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
		started:     time.Now(),
	}
	if config.RateLimit.Enabled {
		s.limiter = NewRateLimiter(config.RateLimit)
	}
	return s
}

func countDropped(column string, _ table.Fragment) {
	droppedFragments.WithLabelValues(column).Inc()
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		err := s.pipeline.Close()
		s.pipeline = nil
		return err
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	public := []middleware{withMetrics, s.withCORS}
	limited := []middleware{withMetrics, s.withCORS, s.withRateLimit}

	mux.HandleFunc("/health", chain(s.healthHandler, public...))
	mux.HandleFunc("/models", chain(s.modelsHandler, public...))
	mux.HandleFunc("/tables/detect", chain(s.detectHandler, limited...))
	mux.HandleFunc("/tables/extract", chain(s.extractHandler, limited...))
	mux.HandleFunc("/tables/fragments", chain(s.fragmentsHandler, limited...))
	mux.HandleFunc("/tables/pdf", chain(s.pdfHandler, limited...))
	mux.HandleFunc("/ws/tables", s.tablesWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
