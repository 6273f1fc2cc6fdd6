package middleware

import (
	"net/http"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/observability"
	"github.com/newsdeck/gatehouse/pkg/security"
)

// PipelineDeps names the components the standard pipeline is built from.
// CSRF and RateLimit may be nil to omit those stages.
type PipelineDeps struct {
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Translator *apierrors.Translator
	Inspector  *security.Inspector
	CSRF       *security.CsrfManager
	RateLimit  func(http.Handler) http.Handler
}

// Pipeline builds the full middleware chain in the mandated order:
// request-id -> logging -> recovery -> security inspection -> CSRF ->
// rate limiting. Validation attaches per route after the pipeline.
func Pipeline(deps PipelineDeps) func(http.Handler) http.Handler {
	stages := []func(http.Handler) http.Handler{
		RequestID,
		RequestLogger(deps.Logger, deps.Metrics),
		Recovery(deps.Translator),
		deps.Inspector.Middleware,
	}
	if deps.CSRF != nil {
		stages = append(stages, deps.CSRF.Middleware(deps.Translator))
	}
	if deps.RateLimit != nil {
		stages = append(stages, deps.RateLimit)
	}
	return Chain(stages...)
}
