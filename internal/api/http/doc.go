// Package http implements the REST surface: service banner, health,
// session listing and lookup, frontend log ingestion, and the JSON
// metrics report with its dashboard. Terminal I/O itself stays on the
// WebSocket and in-process transports.
package http
