package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

// maxLogBatch bounds one ingestion request.
const maxLogBatch = 100

// ClientLogEntry is one log line forwarded by a terminal frontend.
type ClientLogEntry struct {
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	TerminalID string                 `json:"terminalId,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// ClientLogRequest is a batch of frontend log entries.
type ClientLogRequest struct {
	Source  string           `json:"source"`
	Entries []ClientLogEntry `json:"entries"`
}

// StreamLogs ingests batched frontend logs into the server's structured
// log stream, so client-side terminal faults land next to backend ones.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req ClientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request format"})
		return
	}

	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided"})
		return
	}
	if len(req.Entries) > maxLogBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "log batch too large"})
		return
	}

	for _, entry := range req.Entries {
		h.writeClientEntry(req.Source, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"entries_processed": len(req.Entries),
		"timestamp":         types.Now(),
	})
}

// writeClientEntry relogs one frontend entry at its mapped level.
func (h *Handlers) writeClientEntry(source string, entry ClientLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields, zap.String("source", clientSource(source)))
	if entry.TerminalID != "" {
		fields = append(fields, zap.String("terminal_id", entry.TerminalID))
	}

	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		h.log.Error(entry.Message, fields...)
	case "warn":
		h.log.Warn(entry.Message, fields...)
	case "debug", "verbose":
		h.log.Debug(entry.Message, fields...)
	default:
		h.log.Info(entry.Message, fields...)
	}
}

func clientSource(source string) string {
	if source == "" {
		return "client"
	}
	return source
}
