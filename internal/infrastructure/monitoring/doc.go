// Package monitoring provides Prometheus metrics collection.
//
// It tracks HTTP traffic, WebSocket connections, protocol message
// volume, and terminal session lifecycle. Metrics are exposed on the
// /metrics endpoint via Metrics.Handler.
package monitoring
