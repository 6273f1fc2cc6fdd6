package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindAuthentication, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
		{KindAuthorization, http.StatusForbidden, "ACCESS_DENIED"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindConflict, http.StatusConflict, "CONFLICT"},
		{KindRateLimit, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{KindValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.kind.StatusCode())
		assert.Equal(t, tt.code, tt.kind.Code())
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", NewNotFound("nope").Error())

	wrapped := &Error{Kind: KindInternal, Err: errors.New("cause")}
	assert.Equal(t, "cause", wrapped.Error())

	bare := &Error{Kind: KindConflict}
	assert.Equal(t, "CONFLICT", bare.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternal(cause)
	assert.ErrorIs(t, err, cause)
}

func TestClassifyPassesThroughTaxonomyErrors(t *testing.T) {
	original := NewRateLimitExceeded("slow down")
	classified := Classify(original)
	assert.Same(t, original, classified)
}

func TestClassifyWrappedTaxonomyError(t *testing.T) {
	original := NewAccessDenied("no")
	wrapped := fmt.Errorf("handler: %w", original)
	classified := Classify(wrapped)
	require.NotNil(t, classified)
	assert.Equal(t, KindAuthorization, classified.Kind)
}

func TestClassifyUnknownErrorBecomesInternal(t *testing.T) {
	classified := Classify(errors.New("surprise"))
	assert.Equal(t, KindInternal, classified.Kind)
	assert.Equal(t, http.StatusInternalServerError, classified.Kind.StatusCode())
}

func TestNewValidationCarriesDetails(t *testing.T) {
	details := []string{"title is required"}
	err := NewValidation("invalid", details)
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, details, err.Details)
}
