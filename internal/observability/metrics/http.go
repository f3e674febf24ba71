package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal       *prometheus.CounterVec
	uploadBytes        *prometheus.HistogramVec
	extractionDuration *prometheus.HistogramVec
	blobBytesStored    prometheus.Counter
	deletesTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vault",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "files",
			Name:      "uploads_total",
			Help:      "Total upload attempts by declared mimetype and outcome.",
		},
		[]string{"service", "mimetype", "outcome"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault",
			Subsystem: "files",
			Name:      "upload_bytes",
			Help:      "Distribution of accepted upload payload sizes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault",
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "Text extraction duration by extractor and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "extractor", "outcome"},
	)
	blobBytesStored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "blobs",
			Name:      "bytes_stored_total",
			Help:      "Total bytes committed to the blob store.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	deletesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "files",
			Name:      "deletes_total",
			Help:      "Total delete attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		uploadBytes,
		extractionDuration,
		blobBytesStored,
		deletesTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		uploadsTotal:       uploadsTotal,
		uploadBytes:        uploadBytes,
		extractionDuration: extractionDuration,
		blobBytesStored:    blobBytesStored,
		deletesTotal:       deletesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case path == "/files/upload" || path == "/files/extract-text" || path == "/files":
		return path
	case strings.HasPrefix(path, "/files/"):
		return "/files/{file_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service, mimetype, outcome string, bytes int64) {
	if mimetype == "" {
		mimetype = "unknown"
	}
	m.uploadsTotal.WithLabelValues(service, mimetype, outcome).Inc()
	if outcome == "ok" && bytes > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(bytes))
		m.blobBytesStored.Add(float64(bytes))
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service, extractor, outcome string, duration time.Duration) {
	if extractor == "" {
		extractor = "unknown"
	}
	m.extractionDuration.WithLabelValues(service, extractor, outcome).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDelete(service, outcome string) {
	m.deletesTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
