package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/identity"
	"github.com/newsdeck/gatehouse/pkg/ratelimit"
	"github.com/newsdeck/gatehouse/pkg/security"
)

// pipelineFixture wires the full chain the way cmd/gatehouse does, over an
// in-process store
type pipelineFixture struct {
	handler http.Handler
	csrf    *security.CsrfManager
}

func newPipelineFixture(t *testing.T, inner http.Handler) *pipelineFixture {
	t.Helper()
	logger := testLogger()
	translator := apierrors.NewTranslator(logger, nil, false)
	inspector := security.NewInspector(security.DefaultConfig(), logger, nil)
	csrfMgr, err := security.NewCsrfManager(security.CsrfConfig{Secret: []byte("pipeline-secret")}, logger, nil)
	require.NoError(t, err)
	selector := ratelimit.NewRoleSelector(ratelimit.NewMemoryStore(), translator, nil, logger)

	pipeline := Pipeline(PipelineDeps{
		Logger:     logger,
		Translator: translator,
		Inspector:  inspector,
		CSRF:       csrfMgr,
		RateLimit:  selector.Handler,
	})
	return &pipelineFixture{handler: pipeline(inner), csrf: csrfMgr}
}

// withIdentity simulates the host application's authentication layer, which
// resolves the caller before the pipeline runs
func withIdentity(h http.Handler, ident *identity.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), ident)))
	})
}

func TestPipelineAdmitsCleanRequest(t *testing.T) {
	called := false
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/v1/articles", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestPipelineRejectsSQLInjectionBeforeHandler(t *testing.T) {
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest("GET", "/v1/search?q="+url.QueryEscape("' OR '1'='1"), nil)
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SECURITY_VIOLATION", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID, "inspector rejections still carry the request id")
}

func TestPipelineBlocksStateChangeWithoutCsrf(t *testing.T) {
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest("POST", "/v1/articles", strings.NewReader(`{"title":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	withIdentity(fx.handler, &identity.Identity{UserID: "u-1", SessionID: "s-1", Role: identity.RoleRegistered}).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPipelineAdmitsStateChangeWithCsrf(t *testing.T) {
	called := false
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	token := fx.csrf.GenerateToken("s-1")

	r := httptest.NewRequest("POST", "/v1/articles", strings.NewReader(`{"title":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(security.DefaultCsrfHeader, token)
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	withIdentity(fx.handler, &identity.Identity{UserID: "u-1", SessionID: "s-1", Role: identity.RoleRegistered}).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, called)
	assert.Equal(t, "300", rec.Header().Get("X-RateLimit-Limit"), "registered callers get the registered ceiling")
}

func TestPipelineEnforcesQuota(t *testing.T) {
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 101; i++ {
		r := httptest.NewRequest("GET", "/v1/articles", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		fx.handler.ServeHTTP(last, r)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestPipelineRecoversPanics(t *testing.T) {
	fx := newPipelineFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))

	r := httptest.NewRequest("GET", "/v1/articles", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { fx.handler.ServeHTTP(rec, r) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
