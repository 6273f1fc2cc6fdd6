// Package identity carries the resolved caller identity through the pipeline.
//
// The pipeline does not authenticate callers itself; the host application's
// authentication layer resolves the caller and attaches an Identity to the
// request context before the pipeline runs. Every stage that cares about who
// is calling (per-user rate limit keys, role-based presets, CSRF session
// binding, the error log record) reads it from here.
package identity

import (
	"context"
	"net/http"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
)

// Role classifies a caller for rate-limit preset selection
type Role string

const (
	RoleAnonymous  Role = "anonymous"
	RoleRegistered Role = "registered"
	RoleElevated   Role = "elevated"
)

// ParseRole maps a role string to a known Role, defaulting to anonymous
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleRegistered:
		return RoleRegistered
	case RoleElevated:
		return RoleElevated
	default:
		return RoleAnonymous
	}
}

// Identity describes the resolved caller of a request
type Identity struct {
	// UserID is the authenticated user identifier, empty for anonymous callers
	UserID string
	// SessionID binds CSRF tokens to the caller's session
	SessionID string
	// Role classifies the caller for dynamic rate-limit selection
	Role Role
}

// Authenticated reports whether the caller has a resolved user
func (i *Identity) Authenticated() bool {
	return i != nil && i.UserID != ""
}

// WithIdentity attaches an identity to the context
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return contextkeys.WithIdentity(ctx, ident)
}

// FromContext retrieves the caller identity, nil when none was attached
func FromContext(ctx context.Context) *Identity {
	if ident, ok := ctx.Value(contextkeys.IdentityKey).(*Identity); ok {
		return ident
	}
	return nil
}

// FromRequest retrieves the caller identity from the request context
func FromRequest(r *http.Request) *Identity {
	return FromContext(r.Context())
}
