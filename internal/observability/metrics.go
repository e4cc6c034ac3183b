package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BenchCollector bundles Prometheus metrics for the bench service and
// provides helpers to wire them into HTTP handlers.
type BenchCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	TracesTotal    prometheus.Counter
	RaysTraced     prometheus.Counter
	FillsTotal     prometheus.Counter
	ArchiveWrites  prometheus.Counter
	TraceDurations *prometheus.HistogramVec

	SystemPropagators prometheus.Gauge
	SystemLenses      prometheus.Gauge
	SystemDeflectors  prometheus.Gauge
}

// NewBenchCollector registers bench Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewBenchCollector(reg prometheus.Registerer) (*BenchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "bench_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bench_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	httpDurations, err = registerHistogramVec(reg, httpDurations, "bench_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	traceDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bench_trace_duration_seconds",
		Help:    "Batch trace duration in seconds, labeled by execution mode.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	traceDurations, err = registerHistogramVec(reg, traceDurations, "bench_trace_duration_seconds")
	if err != nil {
		return nil, err
	}

	traces, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_traces_total",
		Help: "Total number of batch traces run.",
	}), "bench_traces_total")
	if err != nil {
		return nil, err
	}
	rays, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_rays_traced_total",
		Help: "Total number of rays folded through the bench.",
	}), "bench_rays_traced_total")
	if err != nil {
		return nil, err
	}
	fills, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_fills_total",
		Help: "Total number of free-space fills.",
	}), "bench_fills_total")
	if err != nil {
		return nil, err
	}
	archiveWrites, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_archive_writes_total",
		Help: "Total number of trace sessions written to the archive.",
	}), "bench_archive_writes_total")
	if err != nil {
		return nil, err
	}

	propagators, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_system_propagators",
		Help: "Current number of free-space propagators on the bench.",
	}), "bench_system_propagators")
	if err != nil {
		return nil, err
	}
	lenses, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_system_lenses",
		Help: "Current number of lenses on the bench.",
	}), "bench_system_lenses")
	if err != nil {
		return nil, err
	}
	deflectors, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_system_deflectors",
		Help: "Current number of deflectors on the bench.",
	}), "bench_system_deflectors")
	if err != nil {
		return nil, err
	}

	return &BenchCollector{
		gatherer:          gatherer,
		HTTPRequests:      requests,
		HTTPDurations:     httpDurations,
		TracesTotal:       traces,
		RaysTraced:        rays,
		FillsTotal:        fills,
		ArchiveWrites:     archiveWrites,
		TraceDurations:    traceDurations,
		SystemPropagators: propagators,
		SystemLenses:      lenses,
		SystemDeflectors:  deflectors,
	}, nil
}

// InstrumentHandler records request counts and durations for an HTTP
// route.
func (c *BenchCollector) InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		if c == nil {
			return
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.code)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BenchCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordTrace accounts one batch trace run.
func (c *BenchCollector) RecordTrace(mode string, rays int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.TracesTotal != nil {
		c.TracesTotal.Inc()
	}
	if c.RaysTraced != nil {
		c.RaysTraced.Add(float64(rays))
	}
	if c.TraceDurations != nil {
		c.TraceDurations.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
}

// RecordFill accounts one free-space fill.
func (c *BenchCollector) RecordFill() {
	if c == nil || c.FillsTotal == nil {
		return
	}
	c.FillsTotal.Inc()
}

// RecordArchiveWrite accounts one archived trace session.
func (c *BenchCollector) RecordArchiveWrite() {
	if c == nil || c.ArchiveWrites == nil {
		return
	}
	c.ArchiveWrites.Inc()
}

// SetSystemCounts satisfies the state recorder interface so bench
// mutators can drive the gauges directly.
func (c *BenchCollector) SetSystemCounts(propagators, lenses, deflectors int) {
	if c == nil {
		return
	}
	if c.SystemPropagators != nil {
		c.SystemPropagators.Set(float64(propagators))
	}
	if c.SystemLenses != nil {
		c.SystemLenses.Set(float64(lenses))
	}
	if c.SystemDeflectors != nil {
		c.SystemDeflectors.Set(float64(deflectors))
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so streaming handlers keep
// flushing through the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
