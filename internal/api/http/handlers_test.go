package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/termstream/internal/domain/session"
	"github.com/GriffinCanCode/termstream/internal/domain/terminal"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

type stubBackend struct {
	mu     sync.Mutex
	events chan terminal.Event
	killed bool
}

func newStubBackend() *stubBackend {
	return &stubBackend{events: make(chan terminal.Event, 8)}
}

func (b *stubBackend) Write(p []byte) error          { return nil }
func (b *stubBackend) Resize(cols, rows uint16) error { return nil }

func (b *stubBackend) Kill() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.killed {
		return nil
	}
	b.killed = true
	b.events <- terminal.Event{Type: terminal.EventExit, Code: -1, Signal: "killed"}
	close(b.events)
	return nil
}

func (b *stubBackend) Pause()  {}
func (b *stubBackend) Resume() {}

func (b *stubBackend) Events() <-chan terminal.Event { return b.events }
func (b *stubBackend) Pid() int                      { return 4242 }

func (b *stubBackend) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.killed
}

func (b *stubBackend) Strategy() terminal.Strategy { return terminal.StrategyNative }
func (b *stubBackend) ProcessTree() []int          { return []int{4242} }

type stubSpawner struct{}

func (stubSpawner) Spawn(opts terminal.Options) (*terminal.Result, error) {
	return &terminal.Result{Backend: newStubBackend(), Strategy: terminal.StrategyNative}, nil
}

type sinkEndpoint struct {
	id string
	mu sync.Mutex
	n  int
}

func (e *sinkEndpoint) ID() string { return e.id }

func (e *sinkEndpoint) Send(msg types.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := session.NewRegistry(stubSpawner{}, logging.NewNop())
	t.Cleanup(reg.Shutdown)

	h := NewHandlers(reg, logging.NewNop())
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/terminals", h.ListTerminals)
	r.GET("/terminals/:id", h.GetTerminal)
	r.POST("/logs", h.StreamLogs)
	return r, reg
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	parsed := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestRootReportsService(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doRequest(t, r, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "termstream", body["service"])
	assert.NotEmpty(t, body["version"])
}

func TestHealthCountsActiveSessions(t *testing.T) {
	r, reg := newTestRouter(t)

	_, err := reg.Create(&sinkEndpoint{id: "conn_health"}, "", types.CreateRequest{})
	require.NoError(t, err)

	w, body := doRequest(t, r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessionsActive"])
	assert.GreaterOrEqual(t, body["uptime"].(float64), 0.0)
	assert.Greater(t, body["timestamp"].(float64), 0.0)
}

func TestListTerminalsExposesSessionFields(t *testing.T) {
	r, reg := newTestRouter(t)

	_, err := reg.Create(&sinkEndpoint{id: "conn_list"}, "term_http_list", types.CreateRequest{})
	require.NoError(t, err)

	w, body := doRequest(t, r, http.MethodGet, "/terminals", "")

	assert.Equal(t, http.StatusOK, w.Code)
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)

	first := sessions[0].(map[string]any)
	assert.Equal(t, "term_http_list", first["id"])
	assert.Equal(t, "native", first["strategy"])
	assert.EqualValues(t, 4242, first["pid"])
	assert.Equal(t, true, first["isRunning"])
	assert.Greater(t, first["createdAt"].(float64), 0.0)
}

func TestGetTerminalByID(t *testing.T) {
	r, reg := newTestRouter(t)

	_, err := reg.Create(&sinkEndpoint{id: "conn_get"}, "term_http_get", types.CreateRequest{})
	require.NoError(t, err)

	w, body := doRequest(t, r, http.MethodGet, "/terminals/term_http_get", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term_http_get", body["id"])

	w, body = doRequest(t, r, http.MethodGet, "/terminals/term_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "terminal not found", body["error"])
}

func TestStreamLogsAcceptsBatch(t *testing.T) {
	r, _ := newTestRouter(t)

	payload := `{"source":"frontend","entries":[` +
		`{"level":"info","message":"terminal mounted"},` +
		`{"level":"error","message":"render failed","terminalId":"term_x","context":{"attempt":2}}]}`

	w, body := doRequest(t, r, http.MethodPost, "/logs", payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["entries_processed"])
}

func TestStreamLogsRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("malformed body", func(t *testing.T) {
		w, body := doRequest(t, r, http.MethodPost, "/logs", "not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid log request format", body["error"])
	})

	t.Run("empty batch", func(t *testing.T) {
		w, body := doRequest(t, r, http.MethodPost, "/logs", `{"entries":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "no log entries provided", body["error"])
	})

	t.Run("oversized batch", func(t *testing.T) {
		entries := make([]map[string]string, maxLogBatch+1)
		for i := range entries {
			entries[i] = map[string]string{"level": "info", "message": "x"}
		}
		raw, err := json.Marshal(map[string]any{"entries": entries})
		require.NoError(t, err)

		w, body := doRequest(t, r, http.MethodPost, "/logs", string(raw))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "log batch too large", body["error"])
	})
}

func TestMetricsJSONReport(t *testing.T) {
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())
	metrics.RecordFlush(100)
	metrics.RecordFlush(200)
	metrics.RecordFlush(300)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	agg := NewMetricsAggregator(metrics)
	r.GET("/metrics/json", agg.GetJSON)

	w, body := doRequest(t, r, http.MethodGet, "/metrics/json", "")
	assert.Equal(t, http.StatusOK, w.Code)

	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 0, summary["total_requests"])
	assert.EqualValues(t, 0, summary["error_rate"])
	assert.GreaterOrEqual(t, summary["uptime_seconds"].(float64), 0.0)

	streaming := body["streaming"].(map[string]any)
	assert.EqualValues(t, 600, streaming["bytes_streamed"])
	assert.EqualValues(t, 3, streaming["chunks_flushed"])
	assert.EqualValues(t, 0, streaming["chunks_dropped"])
	assert.InDelta(t, 200, streaming["flush_p50_bytes"].(float64), 0.001)
	assert.InDelta(t, 300, streaming["flush_p99_bytes"].(float64), 0.001)
}

func TestMetricsDashboardServesHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	agg := NewMetricsAggregator(monitoring.NewMetricsWith(prometheus.NewRegistry()))
	r.GET("/metrics/dashboard", agg.Dashboard)

	req := httptest.NewRequest(http.MethodGet, "/metrics/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "termstream Metrics")
	assert.Contains(t, w.Body.String(), "/metrics/json")
}
