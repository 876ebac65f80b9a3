/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the terminal
streaming service, tracking HTTP requests, terminal lifecycle, output
throughput, and backpressure behavior.

# Features

- HTTP request metrics (latency, throughput, size)
- Terminal lifecycle metrics (active sessions, strategy, fallbacks, exits)
- Stream metrics (bytes delivered, flush sizes, dropped chunks)
- Registry operation metrics (duration, errors)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetTerminalsActive(5)
	metrics.IncTerminalsCreated("native")

	// Time operations
	timer := monitoring.NewTimer(metrics, "registry", "create")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
