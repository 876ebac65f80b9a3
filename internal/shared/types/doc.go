// Package types defines the control protocol shared by every transport.
//
// The protocol is a flat JSON envelope carried over WebSocket frames and,
// payload-for-payload identical, over the in-process control channel:
//
//	{"type": "...", "terminalId": "...", "data": ..., "timestamp": 1712345678901}
//
// Timestamps are epoch milliseconds. The data field's shape depends on the
// message type: a bare string for write/data, an object for create/created/
// resize/exit/error/list, absent for kill/ping/pong.
//
// Client → server: create, write, resize, kill, list, ping.
// Server → client: connected, created, data, exit, error, list, pong.
//
// Encoding and decoding go through sonic; Message.Data stays raw until a
// handler knows which payload struct to decode into.
package types
