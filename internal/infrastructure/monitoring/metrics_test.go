package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotAccounting(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/health", "200", 5*time.Millisecond, 0, 64)
	m.RecordHTTPRequest("POST", "/terminals", "500", 2*time.Millisecond, 128, 32)
	m.SetTerminalsActive(3)
	m.RecordFlush(4096)
	m.RecordFlush(1024)
	m.RecordChunksDropped(7)
	m.IncWSConnections()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(3), snap.ActiveTerminals)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Equal(t, int64(5120), snap.BytesStreamed)
	assert.Equal(t, int64(2), snap.ChunksFlushed)
	assert.Equal(t, int64(7), snap.ChunksDropped)
	assert.Equal(t, []float64{4096, 1024}, snap.FlushSizes)
}

func TestDroppedIgnoresNonPositive(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordChunksDropped(0)
	m.RecordChunksDropped(-4)

	assert.Equal(t, int64(0), m.Snapshot().ChunksDropped)
}

func TestFlushSampleWindowWraps(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	for i := 0; i < flushSampleWindow+10; i++ {
		m.RecordFlush(i + 1)
	}

	snap := m.Snapshot()
	assert.Len(t, snap.FlushSizes, flushSampleWindow)
	// Oldest entries were overwritten in place.
	assert.Equal(t, float64(flushSampleWindow+1), snap.FlushSizes[0])
	assert.Equal(t, float64(flushSampleWindow+10), snap.FlushSizes[9])
	assert.Equal(t, float64(11), snap.FlushSizes[10])
}

func TestSnapshotReturnsCopy(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())
	m.RecordFlush(100)

	snap := m.Snapshot()
	snap.FlushSizes[0] = -1

	assert.Equal(t, []float64{100}, m.Snapshot().FlushSizes)
}
