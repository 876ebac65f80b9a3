// Package main is the entry point for the termstream server.
//
// The server hosts interactive terminal sessions behind a WebSocket
// protocol: a native pty backend when the platform supports it, a
// subprocess pipe backend otherwise, with buffered, backpressure-aware
// output streaming in between.
//
// The server provides:
//   - WebSocket terminal transport (create, write, resize, kill, list)
//   - REST endpoints for health, session listing, and metrics
//   - Frontend log ingestion
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML/TOML config file (CONFIG_FILE or -config)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -port 8600
//
//	# Force the subprocess backend with a specific shell
//	./server -strategy subprocess -shell /bin/sh
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
