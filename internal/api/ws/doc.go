// Package ws serves the terminal protocol over websocket.
//
// One Handler serves every connection; each upgrade gets its own endpoint
// identity and a connected banner. Client frames are JSON envelopes
// dispatched to the session registry: create, write, resize, kill, list,
// ping. Malformed frames and failed creates produce error replies without
// dropping the connection. When the socket closes, every session it
// created is force-killed.
package ws
