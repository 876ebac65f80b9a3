package types

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
)

// MessageType discriminates protocol messages.
type MessageType string

// Client → server message types.
const (
	TypeCreate MessageType = "create"
	TypeWrite  MessageType = "write"
	TypeResize MessageType = "resize"
	TypeKill   MessageType = "kill"
	TypeList   MessageType = "list"
	TypePing   MessageType = "ping"
)

// Server → client message types.
const (
	TypeConnected MessageType = "connected"
	TypeCreated   MessageType = "created"
	TypeData      MessageType = "data"
	TypeExit      MessageType = "exit"
	TypeError     MessageType = "error"
	TypePong      MessageType = "pong"
)

// Message is the wire envelope for both transports.
type Message struct {
	Type       MessageType     `json:"type"`
	TerminalID string          `json:"terminalId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// CreateRequest is the data payload of a create message.
type CreateRequest struct {
	Shell string            `json:"shell,omitempty"`
	Cwd   string            `json:"cwd,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
	Cols  int               `json:"cols,omitempty"`
	Rows  int               `json:"rows,omitempty"`
}

// ResizeRequest is the data payload of a resize message.
type ResizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// CreatedPayload is the data payload of a created reply.
type CreatedPayload struct {
	Strategy       string `json:"strategy"`
	FallbackReason string `json:"fallbackReason,omitempty"`
	Pid            int    `json:"pid"`
}

// ExitPayload is the data payload of an exit event.
type ExitPayload struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// ErrorPayload is the data payload of an error reply.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload is the data payload of the connection banner.
type ConnectedPayload struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connectionId"`
}

// TerminalInfo is a read-only session snapshot.
type TerminalInfo struct {
	ID             string `json:"id"`
	Strategy       string `json:"strategy"`
	FallbackReason string `json:"fallbackReason,omitempty"`
	Pid            int    `json:"pid"`
	IsRunning      bool   `json:"isRunning"`
	CreatedAt      int64  `json:"createdAt"`
	LastActivity   int64  `json:"lastActivity"`
}

// ListPayload is the data payload of a list reply.
type ListPayload struct {
	Sessions []TerminalInfo `json:"sessions"`
}

// Now returns the current time as epoch milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Encode serializes a message for the wire.
func Encode(msg Message) ([]byte, error) {
	return sonic.Marshal(msg)
}

// Decode parses a wire frame into a message envelope.
func Decode(raw []byte) (Message, error) {
	var msg Message
	err := sonic.Unmarshal(raw, &msg)
	return msg, err
}

// DecodeData unmarshals the envelope's data payload into v.
func (m Message) DecodeData(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return sonic.Unmarshal(m.Data, v)
}

// New builds a message with the given payload, stamped now.
// Payloads are first-party structs, so marshal failures are programmer
// errors; they surface as an empty data field rather than a panic.
func New(t MessageType, terminalID string, payload interface{}) Message {
	msg := Message{
		Type:       t,
		TerminalID: terminalID,
		Timestamp:  Now(),
	}
	if payload != nil {
		if raw, err := sonic.Marshal(payload); err == nil {
			msg.Data = raw
		}
	}
	return msg
}

// DataMessage wraps terminal output for delivery.
func DataMessage(terminalID string, data []byte) Message {
	return New(TypeData, terminalID, string(data))
}

// CreatedMessage acknowledges a successful create.
func CreatedMessage(terminalID string, p CreatedPayload) Message {
	return New(TypeCreated, terminalID, p)
}

// ExitMessage reports process termination.
func ExitMessage(terminalID string, code int, signal string) Message {
	return New(TypeExit, terminalID, ExitPayload{Code: code, Signal: signal})
}

// ErrorMessage reports a session or protocol failure.
func ErrorMessage(terminalID, text string) Message {
	return New(TypeError, terminalID, ErrorPayload{Message: text})
}

// ConnectedMessage is the banner sent when a transport attaches.
func ConnectedMessage(connectionID, text string) Message {
	return New(TypeConnected, "", ConnectedPayload{
		Message:      text,
		ConnectionID: connectionID,
	})
}

// ListMessage carries a registry snapshot.
func ListMessage(sessions []TerminalInfo) Message {
	if sessions == nil {
		sessions = []TerminalInfo{}
	}
	return New(TypeList, "", ListPayload{Sessions: sessions})
}

// PongMessage answers a ping.
func PongMessage() Message {
	return New(TypePong, "", nil)
}
