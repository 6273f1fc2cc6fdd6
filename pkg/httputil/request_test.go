package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
)

func TestClientIPFromContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(contextkeys.WithClientIP(r.Context(), "203.0.113.9"))
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestClientIPForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", ClientIP(r), "the first entry is the original client")
}

func TestClientIPRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.8")
	assert.Equal(t, "203.0.113.8", ClientIP(r))
}

func TestClientIPRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.4:52011"
	assert.Equal(t, "192.0.2.4", ClientIP(r))
}

func TestClientIPBareRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.4"
	assert.Equal(t, "192.0.2.4", ClientIP(r))
}

func TestClientIPUnknown(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = ""
	assert.Equal(t, "unknown", ClientIP(r))
}
