package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/identity"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// GeneralPreset is the platform-wide API ceiling: 100 requests / 15 minutes
// counted per method+path+client IP
func GeneralPreset() Config {
	return Config{
		Name:   "general",
		Window: 15 * time.Minute,
		Max:    100,
	}
}

// AuthPreset is the strict ceiling for credential endpoints: 5 requests /
// 15 minutes counted per client IP plus the submitted identifier, so a
// credential-stuffing run against one account is throttled even when the
// attacker rotates nothing else
func AuthPreset() Config {
	return Config{
		Name:    "auth",
		Window:  15 * time.Minute,
		Max:     5,
		KeyFunc: IdentifierKeyFunc("email"),
	}
}

// SubmissionPreset throttles content submission: 20 requests / 15 minutes
// counted per authenticated user, falling back to client IP for anonymous
// callers
func SubmissionPreset() Config {
	return Config{
		Name:    "submission",
		Window:  15 * time.Minute,
		Max:     20,
		KeyFunc: UserKeyFunc,
	}
}

// SearchPreset throttles anonymous search: 30 requests / minute per IP,
// skipped entirely for authenticated callers
func SearchPreset() Config {
	return Config{
		Name:   "search",
		Window: time.Minute,
		Max:    30,
		Skip: func(r *http.Request) bool {
			return identity.FromRequest(r).Authenticated()
		},
	}
}

// ElevatedPreset is the generous ceiling for elevated (editorial/admin)
// callers: 1000 requests / 15 minutes per user
func ElevatedPreset() Config {
	return Config{
		Name:    "elevated",
		Window:  15 * time.Minute,
		Max:     1000,
		KeyFunc: UserKeyFunc,
	}
}

// RegisteredPreset is the ceiling for authenticated non-elevated callers:
// 300 requests / 15 minutes per user
func RegisteredPreset() Config {
	return Config{
		Name:    "registered",
		Window:  15 * time.Minute,
		Max:     300,
		KeyFunc: UserKeyFunc,
	}
}

// UserKeyFunc counts per authenticated user id, else per client IP
func UserKeyFunc(r *http.Request) string {
	if ident := identity.FromRequest(r); ident.Authenticated() {
		return fmt.Sprintf("user:%s:%s", ident.UserID, r.URL.Path)
	}
	return fmt.Sprintf("ip:%s:%s", httputil.ClientIP(r), r.URL.Path)
}

// IdentifierKeyFunc counts per client IP plus a caller-submitted identifier
// field. The identifier is read from the sanitized body attached by the
// security inspector (which always runs first), falling back to the query
// string so GET-shaped auth endpoints stay covered.
func IdentifierKeyFunc(field string) KeyFunc {
	return func(r *http.Request) string {
		id := ""
		if body, ok := r.Context().Value(contextkeys.SanitizedBodyKey).(map[string]interface{}); ok {
			if v, ok := body[field].(string); ok {
				id = v
			}
		}
		if id == "" {
			id = r.URL.Query().Get(field)
		}
		return fmt.Sprintf("auth:%s:%s", httputil.ClientIP(r), id)
	}
}

// RoleSelector picks a limiter from the caller's role at request time,
// falling back to the general preset for anonymous and unknown roles
type RoleSelector struct {
	limiters map[identity.Role]*Limiter
	fallback *Limiter
	mw       *Middleware
}

// NewRoleSelector builds the dynamic variant over one shared store
func NewRoleSelector(store Store, translator *apierrors.Translator, metrics *observability.Metrics, logger *observability.Logger) *RoleSelector {
	fallback := NewLimiter(store, GeneralPreset())
	return &RoleSelector{
		limiters: map[identity.Role]*Limiter{
			identity.RoleRegistered: NewLimiter(store, RegisteredPreset()),
			identity.RoleElevated:   NewLimiter(store, ElevatedPreset()),
		},
		fallback: fallback,
		mw:       NewMiddleware(fallback, translator, metrics, logger),
	}
}

// Limiter returns the limiter serving the given role
func (s *RoleSelector) Limiter(role identity.Role) *Limiter {
	if l, ok := s.limiters[role]; ok {
		return l
	}
	return s.fallback
}

// Handler wraps next with role-selected rate limiting
func (s *RoleSelector) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := identity.RoleAnonymous
		if ident := identity.FromRequest(r); ident != nil {
			role = ident.Role
		}
		s.mw.serve(s.Limiter(role), next, w, r)
	})
}
