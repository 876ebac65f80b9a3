package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// flushSampleWindow bounds the number of recent flush sizes retained for
// percentile estimation.
const flushSampleWindow = 1024

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Terminal lifecycle metrics
	TerminalsActive  prometheus.Gauge
	TerminalsCreated *prometheus.CounterVec
	TerminalFallback prometheus.Counter
	TerminalExits    *prometheus.CounterVec

	// Stream metrics
	BytesStreamed prometheus.Counter
	ChunksFlushed prometheus.Counter
	ChunksDropped prometheus.Counter
	FlushSize     prometheus.Histogram

	// Registry operation metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot     MetricsSnapshot
	flushSamples []float64
	flushNext    int

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	ActiveTerminals   int64
	ActiveConnections int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
	BytesStreamed     int64
	ChunksFlushed     int64
	ChunksDropped     int64
	FlushSizes        []float64 // recent flush sizes in bytes
}

// NewMetrics creates a metrics collector registered on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered on reg. Tests use
// this with a fresh registry to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Terminal lifecycle metrics
		TerminalsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_terminals_active",
				Help: "Number of active terminal sessions",
			},
		),
		TerminalsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_terminals_created_total",
				Help: "Total number of terminal sessions created",
			},
			[]string{"strategy"},
		),
		TerminalFallback: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_terminal_fallbacks_total",
				Help: "Total number of native-to-subprocess fallbacks",
			},
		),
		TerminalExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_terminal_exits_total",
				Help: "Total number of terminal exits",
			},
			[]string{"outcome"},
		),

		// Stream metrics
		BytesStreamed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_bytes_streamed_total",
				Help: "Total terminal output bytes delivered to consumers",
			},
		),
		ChunksFlushed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_chunks_flushed_total",
				Help: "Total buffered chunks flushed to consumers",
			},
		),
		ChunksDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termstream_chunks_dropped_total",
				Help: "Total chunks dropped under backpressure",
			},
		),
		FlushSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "termstream_flush_size_bytes",
				Help:    "Size of flushed output batches in bytes",
				Buckets: []float64{256, 1024, 4096, 16384, 32768, 65536, 131072},
			},
		),

		// Registry operation metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termstream_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),
		ServiceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_service_errors_total",
				Help: "Total number of service errors",
			},
			[]string{"service", "method", "error_type"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termstream_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termstream_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// StartTime returns when the collector was created
func (m *Metrics) StartTime() time.Time {
	return m.startTime
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordServiceError records a service error
func (m *Metrics) RecordServiceError(service, method, errorType string) {
	m.ServiceErrors.WithLabelValues(service, method, errorType).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetTerminalsActive sets the number of active terminal sessions
func (m *Metrics) SetTerminalsActive(count int) {
	m.TerminalsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveTerminals = int64(count)
	m.mu.Unlock()
}

// IncTerminalsCreated increments the created counter for a strategy
func (m *Metrics) IncTerminalsCreated(strategy string) {
	m.TerminalsCreated.WithLabelValues(strategy).Inc()
}

// IncTerminalFallback increments the fallback counter
func (m *Metrics) IncTerminalFallback() {
	m.TerminalFallback.Inc()
}

// RecordTerminalExit records a terminal exit outcome ("clean" or "abnormal")
func (m *Metrics) RecordTerminalExit(outcome string) {
	m.TerminalExits.WithLabelValues(outcome).Inc()
}

// RecordFlush records a flushed output batch
func (m *Metrics) RecordFlush(sizeBytes int) {
	m.ChunksFlushed.Inc()
	m.BytesStreamed.Add(float64(sizeBytes))
	m.FlushSize.Observe(float64(sizeBytes))

	m.mu.Lock()
	m.snapshot.ChunksFlushed++
	m.snapshot.BytesStreamed += int64(sizeBytes)
	if len(m.flushSamples) < flushSampleWindow {
		m.flushSamples = append(m.flushSamples, float64(sizeBytes))
	} else {
		m.flushSamples[m.flushNext] = float64(sizeBytes)
		m.flushNext = (m.flushNext + 1) % flushSampleWindow
	}
	m.mu.Unlock()
}

// RecordChunksDropped records chunks shed under backpressure
func (m *Metrics) RecordChunksDropped(n int) {
	if n <= 0 {
		return
	}
	m.ChunksDropped.Add(float64(n))
	m.mu.Lock()
	m.snapshot.ChunksDropped += int64(n)
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the current snapshot values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.FlushSizes = make([]float64, len(m.flushSamples))
	copy(snap.FlushSizes, m.flushSamples)
	return snap
}
