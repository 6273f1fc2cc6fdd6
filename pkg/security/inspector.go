package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// maxScanDepth bounds recursion into attacker-controlled nesting
const maxScanDepth = 32

// Scan failure sentinels, mapped to terminal rejections
var (
	errNameTooLong  = errors.New("parameter name exceeds the configured length limit")
	errValueTooLong = errors.New("parameter value exceeds the configured length limit")
	errSQLInjection = errors.New("suspicious SQL pattern detected")
	errHTMLContent  = errors.New("HTML content is not allowed here")
	errTooDeep      = errors.New("request structure is nested too deeply")
)

// stateChangingMethods require the content-type check and engage CSRF
var stateChangingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Inspector performs the structural and heuristic request checks. Every
// rejection is terminal: no later pipeline stage runs.
type Inspector struct {
	config  *Config
	logger  *observability.Logger
	metrics *observability.Metrics

	// now is swappable for tests
	now func() time.Time
}

// NewInspector creates an inspector over an immutable config. metrics may
// be nil.
func NewInspector(config *Config, logger *observability.Logger, metrics *observability.Metrics) *Inspector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Inspector{
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Middleware wraps next with the full check sequence
func (i *Inspector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.config.methodAllowed(r.Method) {
			i.reject(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method",
				fmt.Sprintf("Method %s is not allowed", r.Method))
			return
		}

		if len(r.URL.RequestURI()) > i.config.MaxURLLength {
			i.reject(w, r, http.StatusRequestURITooLong, "URI_TOO_LONG", "path_length",
				"Request URI exceeds the allowed length")
			return
		}

		if headerSize(r) > i.config.MaxHeaderBytes {
			i.reject(w, r, http.StatusRequestHeaderFieldsTooLarge, "HEADERS_TOO_LARGE", "header_size",
				"Request headers exceed the allowed size")
			return
		}

		hasBody := r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
		if stateChangingMethods[r.Method] && hasBody && !i.config.contentTypeAllowed(r.Header.Get("Content-Type")) {
			i.reject(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "content_type",
				"Content type is not supported")
			return
		}

		r2, ok := i.scanQuery(w, r)
		if !ok {
			return
		}
		r = r2

		if stateChangingMethods[r.Method] && hasBody {
			r2, ok = i.scanBody(w, r)
			if !ok {
				return
			}
			r = r2
		}

		next.ServeHTTP(w, r)
	})
}

// scanQuery checks and sanitizes every query parameter, replacing the raw
// query with the sanitized copy. HTML in a query value is rejected; queries
// have no legitimate reason to carry markup.
func (i *Inspector) scanQuery(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	query := r.URL.Query()
	if len(query) == 0 {
		return r, true
	}

	sanitized := url.Values{}
	queryMap := make(map[string]interface{}, len(query))
	for name, values := range query {
		if len(name) > i.config.MaxParamNameLength {
			i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "param_name_length",
				"Security violation: parameter name too long")
			return nil, false
		}
		for _, value := range values {
			if len(value) > i.config.MaxParamValueLength {
				i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "param_value_length",
					"Security violation: parameter value too long")
				return nil, false
			}
			if i.config.EnableSQLInjectionCheck && ContainsSQLInjection(value) {
				i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "sql_injection",
					fmt.Sprintf("Security violation detected in query parameter %q", name))
				return nil, false
			}
			if i.config.EnableXSSCheck && ContainsHTML(value) {
				i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "xss",
					fmt.Sprintf("Security violation detected in query parameter %q", name))
				return nil, false
			}
			clean := NormalizeWhitespace(value)
			sanitized.Add(name, clean)
			if _, seen := queryMap[name]; !seen {
				queryMap[name] = clean
			}
		}
	}

	r.URL.RawQuery = sanitized.Encode()
	ctx := r.Context()
	ctx = contextWithValue(ctx, contextkeys.SanitizedQueryKey, queryMap)
	return r.WithContext(ctx), true
}

// scanBody parses, checks, and sanitizes the request body, then replaces it
// with the sanitized serialization. HTML in body strings is escaped rather
// than rejected: bodies commonly carry free text that must survive.
func (i *Inspector) scanBody(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	LimitBody(r, i.config.MaxBodyBytes)

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return i.scanJSONBody(w, r)
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		return i.scanFormBody(w, r)
	default:
		// multipart and other allow-listed types stream through with only
		// the size ceiling applied
		return r, true
	}
}

func (i *Inspector) scanJSONBody(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	var payload interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			i.reject(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "body_size",
				"Request body exceeds the allowed size")
			return nil, false
		}
		i.reject(w, r, http.StatusBadRequest, "MALFORMED_BODY", "body_parse",
			"Request body is not valid JSON")
		return nil, false
	}

	sanitized, err := i.sanitizeValue(payload, 0)
	if err != nil {
		i.rejectScanError(w, r, err)
		return nil, false
	}

	buf, err := json.Marshal(sanitized)
	if err != nil {
		i.reject(w, r, http.StatusBadRequest, "MALFORMED_BODY", "body_parse",
			"Request body could not be processed")
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	r.ContentLength = int64(len(buf))

	ctx := r.Context()
	if m, ok := sanitized.(map[string]interface{}); ok {
		ctx = contextWithValue(ctx, contextkeys.SanitizedBodyKey, m)
	}
	return r.WithContext(ctx), true
}

func (i *Inspector) scanFormBody(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			i.reject(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "body_size",
				"Request body exceeds the allowed size")
			return nil, false
		}
		i.reject(w, r, http.StatusBadRequest, "MALFORMED_BODY", "body_parse",
			"Request body could not be read")
		return nil, false
	}

	form, err := url.ParseQuery(string(raw))
	if err != nil {
		i.reject(w, r, http.StatusBadRequest, "MALFORMED_BODY", "body_parse",
			"Request body is not a valid form")
		return nil, false
	}

	sanitized := url.Values{}
	bodyMap := make(map[string]interface{}, len(form))
	for name, values := range form {
		for _, value := range values {
			clean, err := i.sanitizeString(name, value)
			if err != nil {
				i.rejectScanError(w, r, err)
				return nil, false
			}
			sanitized.Add(name, clean)
			if _, seen := bodyMap[name]; !seen {
				bodyMap[name] = clean
			}
		}
	}

	encoded := sanitized.Encode()
	r.Body = io.NopCloser(strings.NewReader(encoded))
	r.ContentLength = int64(len(encoded))
	return r.WithContext(contextWithValue(r.Context(), contextkeys.SanitizedBodyKey, bodyMap)), true
}

// sanitizeValue walks the decoded body. String values get the length check,
// the SQL heuristic, HTML escaping, and whitespace normalization; maps and
// arrays recurse.
func (i *Inspector) sanitizeValue(v interface{}, depth int) (interface{}, error) {
	if depth > maxScanDepth {
		return nil, errTooDeep
	}
	switch val := v.(type) {
	case string:
		return i.sanitizeString("", val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for name, child := range val {
			if len(name) > i.config.MaxParamNameLength {
				return nil, errNameTooLong
			}
			clean, err := i.sanitizeValue(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = clean
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for idx, child := range val {
			clean, err := i.sanitizeValue(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[idx] = clean
		}
		return out, nil
	default:
		// numbers, booleans, null pass through untouched
		return v, nil
	}
}

// sanitizeString applies the body-surface string rules: reject on length or
// SQL patterns, escape HTML, normalize whitespace
func (i *Inspector) sanitizeString(name, value string) (string, error) {
	if len(name) > i.config.MaxParamNameLength {
		return "", errNameTooLong
	}
	if len(value) > i.config.MaxParamValueLength {
		return "", errValueTooLong
	}
	if i.config.EnableSQLInjectionCheck && ContainsSQLInjection(value) {
		return "", errSQLInjection
	}
	if i.config.EnableXSSCheck {
		value = EscapeHTML(value)
	}
	return NormalizeWhitespace(value), nil
}

func (i *Inspector) rejectScanError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errSQLInjection):
		i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "sql_injection",
			"Security violation detected in request body")
	case errors.Is(err, errNameTooLong):
		i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "param_name_length",
			"Security violation: field name too long")
	case errors.Is(err, errValueTooLong):
		i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "param_value_length",
			"Security violation: field value too long")
	case errors.Is(err, errTooDeep):
		i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "nesting_depth",
			"Security violation: request structure nested too deeply")
	default:
		i.reject(w, r, http.StatusBadRequest, "SECURITY_VIOLATION", "scan",
			"Security violation detected in request")
	}
}

// reject terminates the request with an envelope-shaped error. Inspector
// rejections are resolved locally and never propagate to the error
// translator's taxonomy.
func (i *Inspector) reject(w http.ResponseWriter, r *http.Request, status int, code, check, message string) {
	if i.metrics != nil {
		i.metrics.SecurityRejections.WithLabelValues(check).Inc()
	}
	if i.logger != nil {
		i.logger.WithFields(map[string]interface{}{
			"request_id":  contextkeys.GetRequestID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"client_ip":   httputil.ClientIP(r),
			"check":       check,
			"status_code": status,
		}).Warn("request rejected by security inspector")
	}

	httputil.WriteJSON(w, status, apierrors.ErrorResponse{Error: apierrors.ErrorBody{
		Message:    message,
		Code:       code,
		StatusCode: status,
		Timestamp:  i.now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
		Method:     r.Method,
		RequestID:  contextkeys.GetRequestID(r.Context()),
	}})
}

func contextWithValue(ctx context.Context, key contextkeys.Key, v interface{}) context.Context {
	return context.WithValue(ctx, key, v)
}

// headerSize approximates the serialized size of all request headers
func headerSize(r *http.Request) int {
	size := 0
	for name, values := range r.Header {
		for _, value := range values {
			size += len(name) + len(value) + 4 // ": " + CRLF
		}
	}
	return size
}
