// Package validation performs schema-driven validation and sanitization of
// the three request surfaces: body, query parameters, and route parameters.
//
// # Overview
//
// A Schema maps field names to rules (type, required, length, range,
// pattern, enum, nested object, array element). Validation converts every
// violation into a FieldError with a dotted path for nested fields and a
// machine-readable code, optionally substituting caller-supplied friendlier
// messages keyed by violation code.
//
// The combined middleware validates several surfaces at once and aggregates
// every error into a single 400 response, so callers get the complete list
// of problems in one round trip. Accepted values are sanitized the same way
// the security inspector sanitizes them (idempotent, so double application
// is harmless) and attached, typed, to the request context.
//
// # Usage
//
//	articleSchema := validation.Schema{
//	    "title": {Type: validation.TypeString, Required: true, MaxLength: 200},
//	    "body":  {Type: validation.TypeString, Required: true},
//	}
//	mw := validation.NewMiddleware(translator, metrics)
//	router.Handle("/v1/articles",
//	    mw.Validate(validation.Surfaces{Body: articleSchema})(createArticle),
//	).Methods("POST")
package validation
