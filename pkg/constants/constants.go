// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations, including
	// fire-and-forget persistence and push writes
	DefaultTimeout = 30 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// WebSocket constants
const (
	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 54 * time.Second

	// WebSocketPongWait is how long to wait for a pong before dropping the connection
	WebSocketPongWait = 60 * time.Second

	// WebSocketWriteWait is the per-message write deadline
	WebSocketWriteWait = 10 * time.Second

	// WebSocketMaxMessageSize caps inbound frames; SDP offers fit comfortably
	WebSocketMaxMessageSize = 64 * 1024

	// WebSocketSendBuffer is the per-client outbound queue length. A full
	// queue drops the event rather than blocking the relay.
	WebSocketSendBuffer = 256
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Pagination constants
const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 20

	// MaxPageSize is the maximum number of items per page
	MaxPageSize = 100
)

// Message constants
const (
	// MaxMessageLength is the maximum allowed chat message length
	MaxMessageLength = 10000

	// PushPreviewLength is how much of a message body a push notification shows
	PushPreviewLength = 120
)
