package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// statusRecorder captures the response status for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLogger attaches the logger to the request context and emits one
// structured record per request with method, path, status, and duration.
// metrics may be nil.
func RequestLogger(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := observability.WithLogger(r.Context(), logger)
			ctx = contextkeys.WithRequestStartTime(ctx, start)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			duration := time.Since(start)
			observability.FromContext(ctx).WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      recorder.status,
				"duration_ms": duration.Milliseconds(),
			}).Info("request completed")

			if metrics != nil {
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.status)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
			}
		})
	}
}
