package ws

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/termstream/internal/domain/session"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/config"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

// maxInboundBytes caps one client frame. Terminal input is keystrokes and
// pastes; anything larger is a protocol abuse.
const maxInboundBytes = 1 << 20

// Handler upgrades websocket connections and speaks the terminal protocol.
type Handler struct {
	registry *session.Registry
	upgrader websocket.Upgrader
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a websocket handler bound to the registry.
func NewHandler(registry *session.Registry, cfg config.WSConfig, log *logging.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		log: log,
	}
}

// WithMetrics adds metrics tracking to the handler.
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// checkOrigin builds the origin filter. An empty allowlist admits every
// origin, which matches local development use.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades the request and serves the terminal protocol
// until the client disconnects. Disconnecting force-kills every session
// the connection created.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxInboundBytes)

	ep := &endpoint{
		id:      id.NewConnectionID().String(),
		conn:    conn,
		metrics: h.metrics,
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	h.log.Info("websocket connected", zap.String("connection_id", ep.id))

	h.send(ep, types.ConnectedMessage(ep.id, "termstream ready"))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", zap.String("connection_id", ep.id), zap.Error(err))
			}
			break
		}

		msg, err := types.Decode(raw)
		if err != nil {
			// Malformed frames get an error reply; the connection lives on.
			h.send(ep, types.ErrorMessage("", "malformed message: "+err.Error()))
			continue
		}

		if h.metrics != nil {
			h.metrics.RecordWSMessage("inbound", string(msg.Type))
		}
		h.dispatch(ep, msg)
	}

	killed := h.registry.ReleaseEndpoint(ep.id)
	h.log.Info("websocket disconnected",
		zap.String("connection_id", ep.id),
		zap.Int("sessions_killed", killed))
}

// dispatch routes one decoded message. Session-level failures become error
// replies; unknown terminal ids on write/resize/kill are no-ops handled by
// the registry.
func (h *Handler) dispatch(ep *endpoint, msg types.Message) {
	switch msg.Type {
	case types.TypeCreate:
		var req types.CreateRequest
		if err := msg.DecodeData(&req); err != nil {
			h.send(ep, types.ErrorMessage(msg.TerminalID, "malformed create payload: "+err.Error()))
			return
		}
		if _, err := h.registry.Create(ep, msg.TerminalID, req); err != nil {
			h.send(ep, types.ErrorMessage(msg.TerminalID, err.Error()))
		}

	case types.TypeWrite:
		var text string
		if err := msg.DecodeData(&text); err != nil {
			h.send(ep, types.ErrorMessage(msg.TerminalID, "malformed write payload: "+err.Error()))
			return
		}
		h.registry.Write(id.TerminalID(msg.TerminalID), []byte(text))

	case types.TypeResize:
		var req types.ResizeRequest
		if err := msg.DecodeData(&req); err != nil {
			h.send(ep, types.ErrorMessage(msg.TerminalID, "malformed resize payload: "+err.Error()))
			return
		}
		if req.Cols <= 0 || req.Cols > 0xFFFF || req.Rows <= 0 || req.Rows > 0xFFFF {
			h.send(ep, types.ErrorMessage(msg.TerminalID, "invalid dimensions"))
			return
		}
		h.registry.Resize(id.TerminalID(msg.TerminalID), uint16(req.Cols), uint16(req.Rows))

	case types.TypeKill:
		h.registry.Kill(id.TerminalID(msg.TerminalID))

	case types.TypeList:
		h.send(ep, types.ListMessage(h.registry.List()))

	case types.TypePing:
		h.send(ep, types.PongMessage())

	default:
		h.send(ep, types.ErrorMessage(msg.TerminalID, "unknown message type: "+string(msg.Type)))
	}
}

func (h *Handler) send(ep *endpoint, msg types.Message) {
	if err := ep.Send(msg); err != nil {
		h.log.Debug("websocket send failed",
			zap.String("connection_id", ep.id), zap.Error(err))
	}
}

// endpoint adapts one websocket connection to the registry's Endpoint.
// The mutex serializes writers: the read loop and both session pumps all
// send through here, and gorilla allows a single concurrent writer.
type endpoint struct {
	id      string
	conn    *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (e *endpoint) ID() string { return e.id }

func (e *endpoint) Send(msg types.Message) error {
	raw, err := types.Encode(msg)
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordWSMessage("outbound", string(msg.Type))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteMessage(websocket.TextMessage, raw)
}
