package validation

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// Surfaces names the schemas for a combined validation pass; nil surfaces
// are skipped
type Surfaces struct {
	Body   Schema
	Query  Schema
	Params Schema
}

// Middleware validates request surfaces against schemas, rejecting with a
// single aggregated 400 and attaching sanitized, typed results on success
type Middleware struct {
	translator *apierrors.Translator
	metrics    *observability.Metrics
}

// NewMiddleware creates the validation middleware. metrics may be nil.
func NewMiddleware(translator *apierrors.Translator, metrics *observability.Metrics) *Middleware {
	return &Middleware{
		translator: translator,
		metrics:    metrics,
	}
}

// Body validates only the request body
func (m *Middleware) Body(schema Schema) func(http.Handler) http.Handler {
	return m.Validate(Surfaces{Body: schema})
}

// Query validates only the query parameters
func (m *Middleware) Query(schema Schema) func(http.Handler) http.Handler {
	return m.Validate(Surfaces{Query: schema})
}

// Params validates only the route parameters
func (m *Middleware) Params(schema Schema) func(http.Handler) http.Handler {
	return m.Validate(Surfaces{Params: schema})
}

// Validate checks every named surface, aggregating all violations into one
// 400 response rather than failing fast on the first surface
func (m *Middleware) Validate(surfaces Surfaces) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var all []FieldError
			ctx := r.Context()

			if surfaces.Body != nil {
				data, err := bodySurface(r)
				if err != nil {
					all = append(all, FieldError{Field: "body", Message: "body is not valid JSON", Code: CodeInvalidType})
					m.countFailure("body")
				} else if clean, errs := Validate(data, surfaces.Body); errs != nil {
					all = append(all, prefixErrors("body", errs)...)
					m.countFailure("body")
				} else {
					ctx = context.WithValue(ctx, contextkeys.ValidatedBodyKey, clean)
				}
			}

			if surfaces.Query != nil {
				if clean, errs := Validate(querySurface(r), surfaces.Query); errs != nil {
					all = append(all, prefixErrors("query", errs)...)
					m.countFailure("query")
				} else {
					ctx = context.WithValue(ctx, contextkeys.ValidatedQueryKey, clean)
				}
			}

			if surfaces.Params != nil {
				if clean, errs := Validate(paramsSurface(r), surfaces.Params); errs != nil {
					all = append(all, prefixErrors("params", errs)...)
					m.countFailure("params")
				} else {
					ctx = context.WithValue(ctx, contextkeys.ValidatedParamsKey, clean)
				}
			}

			if len(all) > 0 {
				m.translator.WriteError(w, r, apierrors.NewValidation("Request validation failed", all))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Middleware) countFailure(surface string) {
	if m.metrics != nil {
		m.metrics.ValidationFailuresTotal.WithLabelValues(surface).Inc()
	}
}

// bodySurface reads the body map left by the security inspector, falling
// back to decoding the body directly when the inspector did not parse it
func bodySurface(r *http.Request) (map[string]interface{}, error) {
	if body, ok := r.Context().Value(contextkeys.SanitizedBodyKey).(map[string]interface{}); ok {
		return body, nil
	}
	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func querySurface(r *http.Request) map[string]interface{} {
	if query, ok := r.Context().Value(contextkeys.SanitizedQueryKey).(map[string]interface{}); ok {
		return query
	}
	values := r.URL.Query()
	data := make(map[string]interface{}, len(values))
	for name := range values {
		data[name] = values.Get(name)
	}
	return data
}

func paramsSurface(r *http.Request) map[string]interface{} {
	vars := mux.Vars(r)
	data := make(map[string]interface{}, len(vars))
	for name, value := range vars {
		data[name] = value
	}
	return data
}

// prefixErrors scopes field paths by surface so a combined response stays
// unambiguous when surfaces share field names
func prefixErrors(surface string, errs []FieldError) []FieldError {
	out := make([]FieldError, len(errs))
	for i, e := range errs {
		e.Field = surface + "." + e.Field
		out[i] = e
	}
	return out
}

// ValidatedBody returns the sanitized, typed body attached by Validate
func ValidatedBody(r *http.Request) map[string]interface{} {
	if body, ok := r.Context().Value(contextkeys.ValidatedBodyKey).(map[string]interface{}); ok {
		return body
	}
	return nil
}

// ValidatedQuery returns the sanitized, typed query attached by Validate
func ValidatedQuery(r *http.Request) map[string]interface{} {
	if query, ok := r.Context().Value(contextkeys.ValidatedQueryKey).(map[string]interface{}); ok {
		return query
	}
	return nil
}

// ValidatedParams returns the sanitized, typed route parameters attached by
// Validate
func ValidatedParams(r *http.Request) map[string]interface{} {
	if params, ok := r.Context().Value(contextkeys.ValidatedParamsKey).(map[string]interface{}); ok {
		return params
	}
	return nil
}
