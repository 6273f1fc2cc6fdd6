// Package apierrors defines the closed error taxonomy for the API and the
// translator that converts any failure into the uniform JSON error envelope.
//
// # Overview
//
// Every layer above the transport returns or wraps an *apierrors.Error. The
// Translator is the single point that writes an HTTP error response: it
// classifies arbitrary failures into the fixed kind set, redacts sensitive
// substrings in production, emits the envelope, and logs a structured record
// correlated by request ID.
//
// # Taxonomy
//
//	401 AUTHENTICATION_REQUIRED
//	403 ACCESS_DENIED
//	404 NOT_FOUND
//	409 CONFLICT
//	429 RATE_LIMIT_EXCEEDED
//	400 VALIDATION_ERROR
//	500 INTERNAL_ERROR (catch-all)
//
// # Usage
//
//	translator := apierrors.NewTranslator(logger, metrics, production)
//	handler := translator.Wrap(func(w http.ResponseWriter, r *http.Request) error {
//	    article, err := store.Get(id)
//	    if err != nil {
//	        return apierrors.NewNotFound("article not found")
//	    }
//	    return httputil.WriteSuccess(w, article)
//	})
package apierrors
