package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/httputil"
)

// RequestIDHeader carries an inbound request id to propagate; the same
// header echoes the id back on every response
const RequestIDHeader = "X-Request-ID"

// RequestID generates or propagates the request id and resolves the client
// IP once, making both available to every later stage and to the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		ctx = contextkeys.WithClientIP(ctx, httputil.ClientIP(r))

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
