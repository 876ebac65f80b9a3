package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
)

// MetricsAggregator exposes the collector's counters as JSON and as a
// small self-contained dashboard. Prometheus scraping stays on /metrics;
// this is the human-facing view.
type MetricsAggregator struct {
	metrics *monitoring.Metrics
}

// NewMetricsAggregator creates a metrics aggregator.
func NewMetricsAggregator(metrics *monitoring.Metrics) *MetricsAggregator {
	return &MetricsAggregator{metrics: metrics}
}

// MetricsReport is the JSON metrics document.
type MetricsReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Summary   MetricsSummary   `json:"summary"`
	Streaming StreamingMetrics `json:"streaming"`
}

// MetricsSummary provides high-level request metrics.
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveTerminals   int64   `json:"active_terminals"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// StreamingMetrics summarizes the output pipeline.
type StreamingMetrics struct {
	BytesStreamed int64   `json:"bytes_streamed"`
	ChunksFlushed int64   `json:"chunks_flushed"`
	ChunksDropped int64   `json:"chunks_dropped"`
	FlushP50      float64 `json:"flush_p50_bytes"`
	FlushP95      float64 `json:"flush_p95_bytes"`
	FlushP99      float64 `json:"flush_p99_bytes"`
}

// GetJSON returns the aggregated metrics document.
func (ma *MetricsAggregator) GetJSON(c *gin.Context) {
	c.JSON(http.StatusOK, ma.report())
}

func (ma *MetricsAggregator) report() MetricsReport {
	snapshot := ma.metrics.Snapshot()
	uptime := time.Since(ma.metrics.StartTime()).Seconds()

	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	p50, p95, p99 := flushQuantiles(snapshot.FlushSizes)

	return MetricsReport{
		Timestamp: time.Now(),
		Summary: MetricsSummary{
			TotalRequests:     snapshot.TotalRequests,
			AverageLatencyMs:  avgLatency,
			ErrorRate:         errorRate,
			ActiveTerminals:   snapshot.ActiveTerminals,
			ActiveConnections: snapshot.ActiveConnections,
			UptimeSeconds:     uptime,
		},
		Streaming: StreamingMetrics{
			BytesStreamed: snapshot.BytesStreamed,
			ChunksFlushed: snapshot.ChunksFlushed,
			ChunksDropped: snapshot.ChunksDropped,
			FlushP50:      p50,
			FlushP95:      p95,
			FlushP99:      p99,
		},
	}
}

// flushQuantiles computes flush-size percentiles over the recent sample
// window.
func flushQuantiles(samples []float64) (p50, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	p99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	return p50, p95, p99
}

// Dashboard renders a live metrics page backed by /metrics/json and
// /terminals.
func (ma *MetricsAggregator) Dashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>termstream Metrics</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
            background: #0a0a0a;
            color: #e0e0e0;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 {
            font-size: 2rem;
            margin-bottom: 10px;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
        }
        .subtitle { color: #888; margin-bottom: 30px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(300px, 1fr));
            gap: 20px;
            margin-bottom: 20px;
        }
        .card {
            background: #1a1a1a;
            border-radius: 12px;
            padding: 20px;
            border: 1px solid #333;
        }
        .card h2 {
            font-size: 1.2rem;
            margin-bottom: 15px;
            color: #667eea;
        }
        .metric {
            display: flex;
            justify-content: space-between;
            padding: 10px 0;
            border-bottom: 1px solid #2a2a2a;
        }
        .metric:last-child { border-bottom: none; }
        .metric-label { color: #999; }
        .metric-value {
            font-weight: 600;
            color: #fff;
            font-family: 'Courier New', monospace;
        }
        .metric-value.good { color: #4ade80; }
        .metric-value.error { color: #f87171; }
        .endpoint-link {
            display: inline-block;
            margin: 10px 10px 20px 0;
            padding: 8px 16px;
            background: #2a2a2a;
            color: #667eea;
            text-decoration: none;
            border-radius: 6px;
            font-size: 0.9rem;
            border: 1px solid #333;
        }
        .timestamp {
            color: #666;
            text-align: center;
            margin-top: 20px;
            font-size: 0.9rem;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>termstream Metrics</h1>
        <p class="subtitle">Terminal streaming service monitoring</p>

        <div>
            <a href="/metrics" class="endpoint-link">Prometheus Metrics</a>
            <a href="/metrics/json" class="endpoint-link">JSON Format</a>
            <a href="/health" class="endpoint-link">Health Check</a>
            <a href="/terminals" class="endpoint-link">Sessions</a>
        </div>

        <div id="metrics-container">
            <p style="text-align: center; color: #666;">Loading metrics...</p>
        </div>

        <p class="timestamp" id="timestamp"></p>
    </div>

    <script>
        function fmt(value) {
            if (typeof value !== 'number') return value;
            if (value > 1000000) return (value / 1000000).toFixed(2) + 'M';
            if (value > 1000) return (value / 1000).toFixed(2) + 'K';
            if (value < 1 && value > 0) return value.toFixed(3);
            return value.toFixed(value % 1 === 0 ? 0 : 2);
        }

        function row(label, value, cls) {
            return '<div class="metric"><span class="metric-label">' + label +
                '</span><span class="metric-value ' + (cls || '') + '">' + value + '</span></div>';
        }

        function render(data, sessions) {
            const s = data.summary || {};
            const st = data.streaming || {};
            let html = '<div class="grid">';

            html += '<div class="card"><h2>Summary</h2>';
            html += row('Total Requests', fmt(s.total_requests || 0));
            html += row('Avg Latency', fmt(s.average_latency_ms || 0) + ' ms');
            html += row('Error Rate', ((s.error_rate || 0) * 100).toFixed(2) + '%',
                s.error_rate > 0.01 ? 'error' : 'good');
            html += row('Active Terminals', fmt(s.active_terminals || 0));
            html += row('Active Connections', fmt(s.active_connections || 0));
            html += row('Uptime', fmt(s.uptime_seconds || 0) + ' s', 'good');
            html += '</div>';

            html += '<div class="card"><h2>Streaming</h2>';
            html += row('Bytes Streamed', fmt(st.bytes_streamed || 0));
            html += row('Chunks Flushed', fmt(st.chunks_flushed || 0));
            html += row('Chunks Dropped', fmt(st.chunks_dropped || 0),
                st.chunks_dropped > 0 ? 'error' : 'good');
            html += row('Flush p50', fmt(st.flush_p50_bytes || 0) + ' B');
            html += row('Flush p95', fmt(st.flush_p95_bytes || 0) + ' B');
            html += row('Flush p99', fmt(st.flush_p99_bytes || 0) + ' B');
            html += '</div>';

            html += '<div class="card"><h2>Sessions</h2>';
            const list = (sessions && sessions.sessions) || [];
            if (list.length === 0) {
                html += row('Live Sessions', 'none');
            }
            for (const t of list) {
                html += row(t.id, t.strategy + ' pid ' + t.pid,
                    t.isRunning ? 'good' : 'error');
            }
            html += '</div>';

            html += '</div>';
            document.getElementById('metrics-container').innerHTML = html;
            document.getElementById('timestamp').textContent =
                'Last updated: ' + new Date(data.timestamp).toLocaleString();
        }

        function load() {
            Promise.all([
                fetch('/metrics/json').then(r => r.json()),
                fetch('/terminals').then(r => r.json())
            ]).then(([data, sessions]) => render(data, sessions))
              .catch(() => {
                  document.getElementById('metrics-container').innerHTML =
                      '<p style="text-align: center; color: #f87171;">Error loading metrics</p>';
              });
        }

        load();
        setInterval(load, 5000);
    </script>
</body>
</html>`
