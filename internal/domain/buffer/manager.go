package buffer

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
)

// flushSampleWindow bounds the flush sizes retained for quantiles.
const flushSampleWindow = 512

// eventBufferSize smooths bursts between the flusher and its consumer. A
// consumer that stops draining stalls the flusher, the queue grows, and
// shedding takes over; the producer is never blocked.
const eventBufferSize = 8

// Config tunes one manager instance.
type Config struct {
	// MaxBufferSize is the hard cap on queued bytes.
	MaxBufferSize int
	// ChunkSize is the largest internal segment a write is split into.
	ChunkSize int
	// MaxChunksPerFlush bounds how many chunks one tick coalesces.
	MaxChunksPerFlush int
	// FlushInterval is the coalescing tick period.
	FlushInterval time.Duration
	// DropThreshold is the occupancy fraction above which arriving chunks
	// are shed instead of queued.
	DropThreshold float64
}

// NativeProfile favors throughput for the trusted pty stream.
func NativeProfile() Config {
	return Config{
		MaxBufferSize:     16 << 20,
		ChunkSize:         128 << 10,
		MaxChunksPerFlush: 100,
		FlushInterval:     8 * time.Millisecond,
		DropThreshold:     0.85,
	}
}

// SubprocessProfile keeps memory conservative for the sanitized fallback
// stream.
func SubprocessProfile() Config {
	return Config{
		MaxBufferSize:     8 << 20,
		ChunkSize:         32 << 10,
		MaxChunksPerFlush: 50,
		FlushInterval:     16 * time.Millisecond,
		DropThreshold:     0.75,
	}
}

func (c Config) normalized() Config {
	def := SubprocessProfile()
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = def.MaxBufferSize
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.MaxChunksPerFlush <= 0 {
		c.MaxChunksPerFlush = def.MaxChunksPerFlush
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.DropThreshold <= 0 || c.DropThreshold > 1 {
		c.DropThreshold = def.DropThreshold
	}
	return c
}

// EventType discriminates manager events.
type EventType int

const (
	// EventDataReady carries one coalesced batch of output.
	EventDataReady EventType = iota
	// EventChunksDropped reports chunks shed since the last report.
	EventChunksDropped
)

// Event is one item on the manager's event stream.
type Event struct {
	Type    EventType
	Data    []byte
	Dropped int64
}

// Metrics is a point-in-time view of manager counters.
type Metrics struct {
	QueuedBytes     int64
	QueuedChunks    int
	ProcessedChunks int64
	ProcessedBytes  int64
	DroppedChunks   int64
	Occupancy       float64
	FlushP50        float64
	FlushP95        float64
	FlushP99        float64
}

// Health summarizes whether the manager is keeping up.
type Health struct {
	Healthy   bool
	Paused    bool
	Destroyed bool
	Occupancy float64
	Dropped   int64
}

// Manager queues terminal output and delivers it as rate-limited coalesced
// batches. Ordering within one manager is preserved; under sustained
// overload newly arriving chunks are shed with exact accounting rather
// than blocking the producing read loop.
type Manager struct {
	cfg Config
	log *logging.Logger

	mu              sync.Mutex
	queue           [][]byte
	queuedBytes     int64
	paused          bool
	closing         bool
	destroyed       bool
	pendingDrops    int64
	processedChunks int64
	processedBytes  int64
	droppedTotal    int64
	flushSamples    []float64
	flushNext       int

	events chan Event
	drain  chan struct{}
	stop   chan struct{}
}

// NewManager starts a manager with its flush ticker running.
func NewManager(cfg Config, log *logging.Logger) *Manager {
	m := &Manager{
		cfg:    cfg.normalized(),
		log:    log,
		events: make(chan Event, eventBufferSize),
		drain:  make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Events returns the stream of coalesced data and drop reports. The
// channel closes after Destroy.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Write ingests output bytes, segmenting them into chunks of at most
// ChunkSize. It never blocks the caller: above the drop threshold, or when
// a chunk would exceed the buffer cap, the chunk is discarded and counted.
func (m *Manager) Write(data []byte) {
	if len(data) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed || m.closing {
		return
	}

	max := int64(m.cfg.MaxBufferSize)
	for off := 0; off < len(data); off += m.cfg.ChunkSize {
		end := off + m.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		size := int64(end - off)

		occupancy := float64(m.queuedBytes) / float64(max)
		if occupancy > m.cfg.DropThreshold || m.queuedBytes+size > max {
			m.pendingDrops++
			m.droppedTotal++
			continue
		}

		chunk := make([]byte, size)
		copy(chunk, data[off:end])
		m.queue = append(m.queue, chunk)
		m.queuedBytes += size
	}
}

// Pause suspends flushing without discarding queued data. Writes continue
// to queue, still bounded by MaxBufferSize.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume restarts flushing after Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

// Close stops accepting writes, flushes everything still queued, then
// closes the event channel. Use it for orderly teardown where queued
// output must reach the consumer before the channel ends. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.destroyed || m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	m.paused = false
	m.mu.Unlock()

	close(m.drain)
}

// Destroy stops the ticker, releases queued data, and closes the event
// channel. Safe to call more than once; no events are emitted after the
// first call.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.queue = nil
	m.queuedBytes = 0
	m.mu.Unlock()

	close(m.stop)
}

// Metrics returns current counters plus flush-size quantiles over the
// recent sample window.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	met := Metrics{
		QueuedBytes:     m.queuedBytes,
		QueuedChunks:    len(m.queue),
		ProcessedChunks: m.processedChunks,
		ProcessedBytes:  m.processedBytes,
		DroppedChunks:   m.droppedTotal,
		Occupancy:       float64(m.queuedBytes) / float64(m.cfg.MaxBufferSize),
	}
	if len(m.flushSamples) > 0 {
		sorted := make([]float64, len(m.flushSamples))
		copy(sorted, m.flushSamples)
		sort.Float64s(sorted)
		met.FlushP50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		met.FlushP95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
		met.FlushP99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}
	return met
}

// HealthStatus reports whether the manager is inside its operating envelope.
func (m *Manager) HealthStatus() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	occupancy := float64(m.queuedBytes) / float64(m.cfg.MaxBufferSize)
	return Health{
		Healthy:   !m.destroyed && occupancy <= m.cfg.DropThreshold,
		Paused:    m.paused,
		Destroyed: m.destroyed,
		Occupancy: occupancy,
		Dropped:   m.droppedTotal,
	}
}

// run owns the event channel: it emits all batches and drop reports on the
// tick, and closes the channel once stopped.
func (m *Manager) run() {
	defer close(m.events)

	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-m.drain:
			m.finalFlush()
			return
		case <-ticker.C:
			if !m.emit(m.collect()) {
				return
			}
		}
	}
}

// emit sends a collected batch and drop report, yielding to Destroy.
// Returns false once the manager is stopping.
func (m *Manager) emit(data []byte, drops int64) bool {
	if len(data) > 0 {
		select {
		case m.events <- Event{Type: EventDataReady, Data: data}:
		case <-m.stop:
			return false
		}
	}
	if drops > 0 {
		m.log.Warn("output chunks shed under backpressure",
			zap.Int64("dropped", drops))
		select {
		case m.events <- Event{Type: EventChunksDropped, Dropped: drops}:
		case <-m.stop:
			return false
		}
	}
	return true
}

// finalFlush empties the queue in flush-sized batches for Close.
func (m *Manager) finalFlush() {
	for {
		data, drops := m.collect()
		if len(data) == 0 && drops == 0 {
			return
		}
		if !m.emit(data, drops) {
			return
		}
	}
}

// collect pops up to MaxChunksPerFlush chunks as one batch and takes the
// pending drop count. Paused or destroyed managers yield nothing.
func (m *Manager) collect() ([]byte, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.paused {
		return nil, 0
	}

	n := len(m.queue)
	if n > m.cfg.MaxChunksPerFlush {
		n = m.cfg.MaxChunksPerFlush
	}

	var data []byte
	if n > 0 {
		total := 0
		for _, chunk := range m.queue[:n] {
			total += len(chunk)
		}
		data = make([]byte, 0, total)
		for _, chunk := range m.queue[:n] {
			data = append(data, chunk...)
		}
		m.queue = append(m.queue[:0], m.queue[n:]...)
		m.queuedBytes -= int64(total)
		m.processedChunks += int64(n)
		m.processedBytes += int64(total)
		m.recordFlush(float64(total))
	}

	drops := m.pendingDrops
	m.pendingDrops = 0
	return data, drops
}

func (m *Manager) recordFlush(size float64) {
	if len(m.flushSamples) < flushSampleWindow {
		m.flushSamples = append(m.flushSamples, size)
		return
	}
	m.flushSamples[m.flushNext] = size
	m.flushNext = (m.flushNext + 1) % flushSampleWindow
}
