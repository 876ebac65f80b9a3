// Package middleware provides the HTTP middleware for the streaming server.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with stale-client eviction
//   - GlobalRateLimit: Shared token bucket, applied to log ingestion
//
// The CORS origin allowlist is shared with the WebSocket upgrade check so
// both surfaces accept the same clients.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
