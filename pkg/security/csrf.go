package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/contextkeys"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/identity"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

const (
	// DefaultCsrfHeader is the header carrying the token
	DefaultCsrfHeader = "x-csrf-token"
	// CsrfField is the body/query field equivalent of the header
	CsrfField = "_csrf"
	// DefaultCsrfTTL is how long an issued token verifies
	DefaultCsrfTTL = 24 * time.Hour
	// defaultMaxSessions bounds the token store
	defaultMaxSessions = 65536
)

// storedToken is the single live token slot for one session
type storedToken struct {
	token     string
	expiresAt time.Time
}

// CsrfConfig configures the token manager
type CsrfConfig struct {
	// Secret keys the token HMAC; required
	Secret []byte
	// TTL is the token lifetime, default 24h
	TTL time.Duration
	// HeaderName overrides the token header, default x-csrf-token
	HeaderName string
	// MaxSessions bounds the token store; the oldest session is evicted
	// when full
	MaxSessions int
}

// CsrfManager issues, stores, and verifies per-session anti-forgery tokens.
// One live token per session: a new issuance overwrites the prior one. The
// expirable LRU behind it reaps expired entries on its own timer, bounding
// memory growth without a per-request sweep.
type CsrfManager struct {
	secret     []byte
	ttl        time.Duration
	headerName string
	tokens     *expirable.LRU[string, storedToken]
	logger     *observability.Logger
	metrics    *observability.Metrics

	// now is swappable for tests
	now func() time.Time
}

// NewCsrfManager creates a token manager. metrics may be nil.
func NewCsrfManager(config CsrfConfig, logger *observability.Logger, metrics *observability.Metrics) (*CsrfManager, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("csrf: secret must not be empty")
	}
	if config.TTL == 0 {
		config.TTL = DefaultCsrfTTL
	}
	if config.HeaderName == "" {
		config.HeaderName = DefaultCsrfHeader
	}
	if config.MaxSessions == 0 {
		config.MaxSessions = defaultMaxSessions
	}
	return &CsrfManager{
		secret:     config.Secret,
		ttl:        config.TTL,
		headerName: config.HeaderName,
		tokens:     expirable.NewLRU[string, storedToken](config.MaxSessions, nil, config.TTL),
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}, nil
}

// GenerateToken derives a token for the session and stores it, replacing
// any prior token for the same session
func (m *CsrfManager) GenerateToken(sessionID string) string {
	issuedAt := m.now()
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(sessionID))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatInt(issuedAt.UnixNano(), 10)))
	token := hex.EncodeToString(mac.Sum(nil))

	m.tokens.Add(sessionID, storedToken{
		token:     token,
		expiresAt: issuedAt.Add(m.ttl),
	})
	return token
}

// VerifyToken checks the token presented by the request against the stored
// token for the session. Safe methods always pass; any mismatch, absence,
// or expiry fails.
func (m *CsrfManager) VerifyToken(r *http.Request, sessionID string) error {
	if !stateChangingMethods[r.Method] {
		return nil
	}
	if sessionID == "" {
		return fmt.Errorf("csrf: no session for state-changing request")
	}

	stored, ok := m.tokens.Get(sessionID)
	if !ok {
		return fmt.Errorf("csrf: no token issued for session")
	}
	if m.now().After(stored.expiresAt) {
		m.tokens.Remove(sessionID)
		return fmt.Errorf("csrf: token expired")
	}

	presented := m.extractToken(r)
	if presented == "" {
		return fmt.Errorf("csrf: no token presented")
	}
	if subtle.ConstantTimeCompare([]byte(stored.token), []byte(presented)) != 1 {
		return fmt.Errorf("csrf: token mismatch")
	}
	return nil
}

// Invalidate discards the session's token
func (m *CsrfManager) Invalidate(sessionID string) {
	m.tokens.Remove(sessionID)
}

// extractToken reads the token from the header, the sanitized body field,
// or the query field, in that order
func (m *CsrfManager) extractToken(r *http.Request) string {
	if token := r.Header.Get(m.headerName); token != "" {
		return token
	}
	if body, ok := r.Context().Value(contextkeys.SanitizedBodyKey).(map[string]interface{}); ok {
		if token, ok := body[CsrfField].(string); ok && token != "" {
			return token
		}
	}
	return r.URL.Query().Get(CsrfField)
}

// Middleware verifies the anti-forgery token on state-changing methods.
// It must run after the security inspector so body-carried tokens are
// readable from the sanitized copy.
func (m *CsrfManager) Middleware(translator *apierrors.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !stateChangingMethods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			sessionID := ""
			if ident := identity.FromRequest(r); ident != nil {
				sessionID = ident.SessionID
			}

			if err := m.VerifyToken(r, sessionID); err != nil {
				if m.metrics != nil {
					m.metrics.CSRFFailuresTotal.Inc()
				}
				if m.logger != nil {
					m.logger.WithError(err).
						WithField("request_id", contextkeys.GetRequestID(r.Context())).
						WithField("path", r.URL.Path).
						Warn("csrf verification failed")
				}
				translator.WriteError(w, r, apierrors.NewAccessDenied("Invalid or missing CSRF token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IssueHandler returns the session's current token, issuing one when
// needed. Callers embed it in subsequent state-changing requests.
func (m *CsrfManager) IssueHandler() apierrors.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		ident := identity.FromRequest(r)
		if ident == nil || ident.SessionID == "" {
			return apierrors.NewAuthenticationRequired("A session is required to issue a CSRF token")
		}
		token := m.GenerateToken(ident.SessionID)
		return httputil.WriteSuccess(w, map[string]string{"csrfToken": token})
	}
}
