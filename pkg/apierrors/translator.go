package apierrors

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/identity"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// ErrorResponse is the uniform JSON error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error detail inside the envelope
type ErrorBody struct {
	Message    string      `json:"message"`
	Code       string      `json:"code"`
	StatusCode int         `json:"statusCode"`
	Timestamp  string      `json:"timestamp"`
	Path       string      `json:"path"`
	Method     string      `json:"method"`
	RequestID  string      `json:"requestId"`
	Details    interface{} `json:"details,omitempty"`
}

// Translator converts failures into HTTP error responses and log records.
// It is the only component that writes an error response body.
type Translator struct {
	logger     *observability.Logger
	metrics    *observability.Metrics
	production bool
	now        func() time.Time
}

// NewTranslator creates an error translator. In production posture messages
// are redacted and internal detail is withheld; in development the envelope
// carries the cause and stack under details. metrics may be nil.
func NewTranslator(logger *observability.Logger, metrics *observability.Metrics, production bool) *Translator {
	return &Translator{
		logger:     logger,
		metrics:    metrics,
		production: production,
		now:        time.Now,
	}
}

// WriteError classifies err, logs a structured record, and writes the envelope
func (t *Translator) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := Classify(err)
	t.write(w, r, apiErr, nil)
}

// write emits the envelope and log record; stack is non-nil for panics
func (t *Translator) write(w http.ResponseWriter, r *http.Request, apiErr *Error, stack []byte) {
	requestID := contextkeys.GetRequestID(r.Context())

	message := apiErr.Message
	if message == "" {
		message = apiErr.Kind.Code()
	}
	if t.production {
		if apiErr.Kind == KindInternal {
			message = "An internal error occurred"
		}
		message = Redact(message)
	}

	body := ErrorBody{
		Message:    message,
		Code:       apiErr.Kind.Code(),
		StatusCode: apiErr.Kind.StatusCode(),
		Timestamp:  t.now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
		Method:     r.Method,
		RequestID:  requestID,
		Details:    apiErr.Details,
	}
	if !t.production {
		debugDetail := map[string]interface{}{}
		if apiErr.Err != nil {
			debugDetail["cause"] = apiErr.Err.Error()
		}
		if stack != nil {
			debugDetail["stack"] = string(stack)
		}
		if len(debugDetail) > 0 {
			if body.Details == nil {
				body.Details = debugDetail
			} else {
				body.Details = map[string]interface{}{
					"fields": apiErr.Details,
					"debug":  debugDetail,
				}
			}
		}
	}

	t.log(r, apiErr, requestID, stack)
	if t.metrics != nil {
		t.metrics.ErrorsTotal.WithLabelValues(apiErr.Kind.Code()).Inc()
	}

	w.Header().Set("X-Request-ID", requestID)
	httputil.WriteJSON(w, apiErr.Kind.StatusCode(), ErrorResponse{Error: body})
}

// log emits the structured record for every translated error, surfaced or not
func (t *Translator) log(r *http.Request, apiErr *Error, requestID string, stack []byte) {
	logger := t.logger.WithFields(map[string]interface{}{
		"request_id":  requestID,
		"method":      r.Method,
		"path":        r.URL.Path,
		"client_ip":   contextkeys.GetClientIP(r.Context()),
		"status_code": apiErr.Kind.StatusCode(),
		"code":        apiErr.Kind.Code(),
	})
	if ident := identity.FromRequest(r); ident.Authenticated() {
		logger = logger.WithField("user_id", ident.UserID)
	}
	if apiErr.Err != nil {
		logger = logger.WithError(apiErr.Err)
	}
	if stack != nil {
		s := string(stack)
		if t.production {
			s = Redact(s)
		}
		logger = logger.WithField("stack", s)
	}

	if apiErr.Kind.StatusCode() >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected")
	}
}

// HandlerFunc is an HTTP handler that surfaces failures as return values
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Wrap adapts a HandlerFunc into an http.Handler, routing any returned error
// through the translator
func (t *Translator) Wrap(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			t.WriteError(w, r, err)
		}
	})
}

// Recover converts a panic into a 500 response. Intended for use from the
// recovery middleware.
func (t *Translator) Recover(w http.ResponseWriter, r *http.Request, v interface{}) {
	apiErr := NewInternal(fmt.Errorf("panic: %v", v))
	t.write(w, r, apiErr, debug.Stack())
}
