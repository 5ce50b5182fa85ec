package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tablo"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	// kind is one of detect, image, pdf, fragments, websocket.
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Table extractions by kind and outcome.",
	}, []string{"type", "status"})

	extractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extraction_duration_seconds",
		Help:      "Time spent detecting, recognizing and rebuilding one table.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 25},
	}, []string{"type"})

	tableRows = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "table_rows",
		Help:      "Rows per reconstructed table.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"type"})

	droppedFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_fragments_total",
		Help:      "Fragments the row aligner could not place.",
	}, []string{"column"})

	rateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_hits_total",
		Help:      "Requests rejected by the per-client limiter.",
	})

	// 1 KiB up to 256 MiB.
	uploadSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_size_bytes",
		Help:      "Size of uploaded images and PDFs.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "active_connections",
		Help:      "Open websocket connections.",
	})

	websocketMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Websocket messages by direction (sent, received).",
	}, []string{"direction"})
)

// recordResult updates the per-extraction metrics for a successful request.
func recordResult(kind string, rows int, seconds float64) {
	extractionsTotal.WithLabelValues(kind, "success").Inc()
	extractionDuration.WithLabelValues(kind).Observe(seconds)
	tableRows.WithLabelValues(kind).Observe(float64(rows))
}

func recordFailure(kind string) {
	extractionsTotal.WithLabelValues(kind, "error").Inc()
}
