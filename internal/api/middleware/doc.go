// Package middleware provides the HTTP middleware of the status API.
//
// Middleware stack:
//   - RequestID: propagates or assigns X-Request-ID
//   - Logger: one zap line per request, leveled by status
//   - CORS: cross-origin reads for dashboards
//   - RateLimit: per-IP token bucket, idle clients are swept
//   - GlobalRateLimit: one bucket for all clients
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
