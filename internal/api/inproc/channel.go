package inproc

import (
	"errors"
	"sync"

	"github.com/GriffinCanCode/termstream/internal/domain/session"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/shared/types"
)

// eventBufferSize bounds undelivered events per client. A consumer that
// stops draining starts losing events rather than wedging the session
// pumps.
const eventBufferSize = 256

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("in-process client is closed")

	// ErrSlowConsumer is returned when the event channel is full.
	ErrSlowConsumer = errors.New("in-process consumer not draining events")
)

// Client is the embedded counterpart of a websocket connection: the same
// registry, the same message stream, no sockets. It implements
// session.Endpoint, so server-pushed messages (created, data, exit, error)
// arrive on Events exactly as they would on the wire.
type Client struct {
	registry *session.Registry
	id       string
	events   chan types.Message

	mu     sync.Mutex
	closed bool
}

// NewClient attaches a fresh endpoint identity to the registry. The
// connected banner is the first event, mirroring the websocket transport.
func NewClient(registry *session.Registry) *Client {
	c := &Client{
		registry: registry,
		id:       id.NewConnectionID().String(),
		events:   make(chan types.Message, eventBufferSize),
	}
	c.events <- types.ConnectedMessage(c.id, "termstream ready")
	return c
}

// ID implements session.Endpoint.
func (c *Client) ID() string { return c.id }

// Send implements session.Endpoint. It never blocks: a full event channel
// refuses the message instead of stalling the delivery pump.
func (c *Client) Send(msg types.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.events <- msg:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Events returns the server-to-client message stream. The channel closes
// after Close.
func (c *Client) Events() <-chan types.Message {
	return c.events
}

// Create spawns a terminal owned by this client, with a generated id.
func (c *Client) Create(req types.CreateRequest) (id.TerminalID, error) {
	return c.registry.Create(c, "", req)
}

// CreateWithID spawns a terminal under a caller-chosen id.
func (c *Client) CreateWithID(terminalID string, req types.CreateRequest) (id.TerminalID, error) {
	return c.registry.Create(c, terminalID, req)
}

// Write forwards input bytes to the terminal.
func (c *Client) Write(tid id.TerminalID, data []byte) bool {
	return c.registry.Write(tid, data)
}

// Resize updates terminal dimensions best-effort.
func (c *Client) Resize(tid id.TerminalID, cols, rows uint16) bool {
	return c.registry.Resize(tid, cols, rows)
}

// Kill terminates the terminal and deregisters it immediately.
func (c *Client) Kill(tid id.TerminalID) bool {
	return c.registry.Kill(tid)
}

// List snapshots every live session in the registry.
func (c *Client) List() []types.TerminalInfo {
	return c.registry.List()
}

// Close detaches the client, force-killing every session it created, and
// closes the event channel. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.events)
	c.mu.Unlock()

	c.registry.ReleaseEndpoint(c.id)
}
