package observability

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buckets == nil {
		buckets = DefaultBuckets()
	}

	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns default histogram buckets for latency.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++

	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records a duration in the histogram.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler returns an HTTP handler for Prometheus metrics.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes metrics in Prometheus text format.
func (r *MetricsRegistry) WritePrometheus(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.counters {
		c.mu.Lock()
		writeMetric(w, c.name, "counter", c.help, c.labels, c.value)
		c.mu.Unlock()
	}

	for _, g := range r.gauges {
		g.mu.Lock()
		writeMetric(w, g.name, "gauge", g.help, g.labels, g.value)
		g.mu.Unlock()
	}

	for _, h := range r.histos {
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func writeMetric(w http.ResponseWriter, name, metricType, help string, labels map[string]string, value float64) {
	w.Write([]byte("# HELP " + name + " " + help + "\n"))
	w.Write([]byte("# TYPE " + name + " " + metricType + "\n"))
	w.Write([]byte(name + formatLabels(labels) + " "))
	w.Write([]byte(formatFloat(value) + "\n"))
}

func writeHistogram(w http.ResponseWriter, h *Histogram) {
	w.Write([]byte("# HELP " + h.name + " " + h.help + "\n"))
	w.Write([]byte("# TYPE " + h.name + " histogram\n"))

	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		labels := copyLabels(h.labels)
		labels["le"] = formatFloat(bound)
		w.Write([]byte(h.name + "_bucket" + formatLabels(labels) + " "))
		w.Write([]byte(strconv.FormatUint(cumulative, 10) + "\n"))
	}

	labels := copyLabels(h.labels)
	labels["le"] = "+Inf"
	w.Write([]byte(h.name + "_bucket" + formatLabels(labels) + " "))
	w.Write([]byte(strconv.FormatUint(h.count, 10) + "\n"))

	w.Write([]byte(h.name + "_sum" + formatLabels(h.labels) + " "))
	w.Write([]byte(formatFloat(h.sum) + "\n"))
	w.Write([]byte(h.name + "_count" + formatLabels(h.labels) + " "))
	w.Write([]byte(strconv.FormatUint(h.count, 10) + "\n"))
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range labels {
		if !first {
			b.WriteByte(',')
		}
		b.WriteString(k + "=\"" + v + "\"")
		first = false
	}
	b.WriteByte('}')
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	result := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		result[k] = v
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Askpdf-specific metrics

// AskpdfMetrics contains all askpdf-specific metrics.
type AskpdfMetrics struct {
	Registry *MetricsRegistry

	// Upload metrics
	UploadsTotal      *Counter
	UploadErrorsTotal *Counter
	UploadDuration    *Histogram
	ChunksStoredTotal *Counter

	// Query metrics
	QueriesTotal      *Counter
	QueryErrorsTotal  *Counter
	QueryDuration     *Histogram
	RetrievedChunks   *Histogram

	// LLM metrics
	LLMRequestsTotal *Counter
	LLMErrorsTotal   *Counter
	LLMTokensTotal   *Counter
	LLMDuration      *Histogram

	// Store metrics
	StoredChunksGauge *Gauge
}

// NewAskpdfMetrics creates askpdf-specific metrics.
func NewAskpdfMetrics() *AskpdfMetrics {
	r := NewMetricsRegistry()

	return &AskpdfMetrics{
		Registry: r,

		// Uploads
		UploadsTotal:      r.NewCounter("askpdf_uploads_total", "Total document uploads", nil),
		UploadErrorsTotal: r.NewCounter("askpdf_upload_errors_total", "Total failed uploads", nil),
		UploadDuration:    r.NewHistogram("askpdf_upload_duration_seconds", "Upload processing duration", nil, nil),
		ChunksStoredTotal: r.NewCounter("askpdf_chunks_stored_total", "Total chunks stored", nil),

		// Queries
		QueriesTotal:     r.NewCounter("askpdf_queries_total", "Total queries answered", nil),
		QueryErrorsTotal: r.NewCounter("askpdf_query_errors_total", "Total failed queries", nil),
		QueryDuration:    r.NewHistogram("askpdf_query_duration_seconds", "Query processing duration", nil, nil),
		RetrievedChunks:  r.NewHistogram("askpdf_retrieved_chunks", "Chunks retrieved per query", nil, []float64{0, 1, 2, 3}),

		// LLM
		LLMRequestsTotal: r.NewCounter("askpdf_llm_requests_total", "Total LLM API requests", nil),
		LLMErrorsTotal:   r.NewCounter("askpdf_llm_errors_total", "Total LLM errors", nil),
		LLMTokensTotal:   r.NewCounter("askpdf_llm_tokens_total", "Total tokens used", nil),
		LLMDuration:      r.NewHistogram("askpdf_llm_request_duration_seconds", "LLM request duration", nil, nil),

		// Store
		StoredChunksGauge: r.NewGauge("askpdf_stored_chunks", "Chunks currently in the vector store", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *AskpdfMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordUpload records a document upload.
func (m *AskpdfMetrics) RecordUpload(duration time.Duration, chunksStored int, err error) {
	m.UploadsTotal.Inc()
	m.UploadDuration.Observe(duration.Seconds())
	if err != nil {
		m.UploadErrorsTotal.Inc()
		return
	}
	m.ChunksStoredTotal.Add(float64(chunksStored))
	m.StoredChunksGauge.Add(float64(chunksStored))
}

// RecordQuery records a query.
func (m *AskpdfMetrics) RecordQuery(duration time.Duration, retrieved int, err error) {
	m.QueriesTotal.Inc()
	m.QueryDuration.Observe(duration.Seconds())
	if err != nil {
		m.QueryErrorsTotal.Inc()
		return
	}
	m.RetrievedChunks.Observe(float64(retrieved))
}

// RecordLLMRequest records an LLM request.
func (m *AskpdfMetrics) RecordLLMRequest(duration time.Duration, tokens int, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMDuration.Observe(duration.Seconds())
	m.LLMTokensTotal.Add(float64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

// Global metrics instance
var globalMetrics *AskpdfMetrics
var metricsOnce sync.Once

// Metrics returns the global metrics instance.
func Metrics() *AskpdfMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewAskpdfMetrics()
	})
	return globalMetrics
}
