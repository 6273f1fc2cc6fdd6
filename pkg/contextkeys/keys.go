// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the pipeline must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/newsdeck/gatehouse/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
//   requestID := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID or propagated X-Request-ID)
	// Set by: middleware.RequestID
	// Used by: logger, error translator, response envelope
	// Type: string
	RequestIDKey Key = "request_id"

	// IdentityKey contains the resolved caller identity
	// Set by: the host application's authentication layer, before the pipeline runs
	// Used by: rate limit key functions, role-based preset selection, CSRF, error log
	// Type: *identity.Identity
	IdentityKey Key = "identity"

	// ClientIPKey contains the caller's IP address string
	// Set by: middleware.RequestID (resolved once per request)
	// Used by: rate limit key functions, error translator log record
	// Type: string
	ClientIPKey Key = "client_ip"

	// LoggerKey contains *observability.Logger
	// Set by: middleware.RequestLogger
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// SanitizedBodyKey contains the security-sanitized request body
	// Set by: security inspector middleware
	// Used by: rate limit key functions (auth preset), validation middleware
	// Type: map[string]interface{}
	SanitizedBodyKey Key = "sanitized_body"

	// SanitizedQueryKey contains the security-sanitized query parameters
	// Set by: security inspector middleware
	// Type: map[string]interface{}
	SanitizedQueryKey Key = "sanitized_query"

	// ValidatedBodyKey contains the sanitized, schema-validated request body
	// Set by: validation middleware
	// Type: map[string]interface{}
	ValidatedBodyKey Key = "validated_body"

	// ValidatedQueryKey contains the sanitized, schema-validated query parameters
	// Set by: validation middleware
	// Type: map[string]interface{}
	ValidatedQueryKey Key = "validated_query"

	// ValidatedParamsKey contains the sanitized, schema-validated route parameters
	// Set by: validation middleware
	// Type: map[string]interface{}
	ValidatedParamsKey Key = "validated_params"

	// RequestStartTimeKey contains request start timestamp
	// Set by: middleware.RequestLogger
	// Used by: duration calculation in the request log
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// Helper functions for type-safe context operations

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

// WithClientIP adds the caller IP to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetClientIP retrieves the caller IP from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
