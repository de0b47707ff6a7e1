package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// automation pipeline.
type Collector struct {
	registry          *prometheus.Registry
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	executionTotal    *prometheus.CounterVec
	executionDuration prometheus.Histogram
	queueDepth        prometheus.GaugeFunc
}

// NewCollector constructs a collector. queueDepth samples the worker pool's
// backlog at scrape time.
func NewCollector(queueDepth func() int) (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pressflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressflow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	executionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pressflow",
		Subsystem: "automation",
		Name:      "executions_total",
		Help:      "Total number of rule executions by outcome.",
	}, []string{"result"})

	executionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pressflow",
		Subsystem: "automation",
		Name:      "execution_duration_seconds",
		Help:      "Duration of full pipeline executions.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pressflow",
		Subsystem: "automation",
		Name:      "queue_depth",
		Help:      "Tasks waiting for a pipeline worker.",
	}, func() float64 {
		if queueDepth == nil {
			return 0
		}
		return float64(queueDepth())
	})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, executionTotal, executionDuration, gauge} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:          registry,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		executionTotal:    executionTotal,
		executionDuration: executionDuration,
		queueDepth:        gauge,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveExecution records one pipeline run.
func (c *Collector) ObserveExecution(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.executionTotal.WithLabelValues(result).Inc()
	c.executionDuration.Observe(duration.Seconds())
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
