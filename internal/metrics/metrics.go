package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and
// forecast job outcomes.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTotal        *prometheus.CounterVec
	resultTotal     prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridcast",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcast",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridcast",
		Subsystem: "forecast",
		Name:      "job_duration_seconds",
		Help:      "Processing time distribution for forecast jobs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	jobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcast",
		Subsystem: "forecast",
		Name:      "jobs_total",
		Help:      "Total number of forecast jobs by terminal status.",
	}, []string{"status"})

	resultTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gridcast",
		Subsystem: "forecast",
		Name:      "results_total",
		Help:      "Total number of forecast result rows produced.",
	})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, jobDuration, jobTotal, resultTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobDuration:     jobDuration,
		jobTotal:        jobTotal,
		resultTotal:     resultTotal,
	}, nil
}

// RecordJob records one terminal forecast job outcome.
func (c *Collector) RecordJob(status string, duration time.Duration, resultCount int) {
	c.jobTotal.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.resultTotal.Add(float64(resultCount))
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
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
