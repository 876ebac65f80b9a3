package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/termstream/internal/domain/session"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

const serviceVersion = "0.1.0"

// Handlers contains the REST read surface. Terminal lifecycle runs over
// the websocket and in-process transports; HTTP only observes.
type Handlers struct {
	registry  *session.Registry
	log       *logging.Logger
	startTime time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(registry *session.Registry, log *logging.Logger) *Handlers {
	return &Handlers{
		registry:  registry,
		log:       log,
		startTime: time.Now(),
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termstream",
		"version": serviceVersion,
	})
}

// Health reports liveness plus session load.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"sessionsActive": h.registry.Count(),
		"uptime":         time.Since(h.startTime).Seconds(),
		"timestamp":      types.Now(),
	})
}

// ListTerminals lists every live session.
func (h *Handlers) ListTerminals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.registry.List(),
	})
}

// GetTerminal returns one session snapshot or 404.
func (h *Handlers) GetTerminal(c *gin.Context) {
	tid := id.TerminalID(c.Param("id"))

	info, ok := h.registry.Get(tid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "terminal not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}
