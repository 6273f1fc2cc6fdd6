package middleware

import (
	"net/http"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
)

// Recovery converts a handler panic into the 500 envelope via the error
// translator instead of crashing the connection
func Recovery(translator *apierrors.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					translator.Recover(w, r, v)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
