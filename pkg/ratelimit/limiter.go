package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/observability"
)

// KeyFunc derives the counting key for a request
type KeyFunc func(r *http.Request) string

// Config defines one limiter's behavior
type Config struct {
	// Name identifies the preset in metrics and logs
	Name string
	// Window is the fixed counting interval
	Window time.Duration
	// Max is the request ceiling per window
	Max int64
	// KeyFunc derives the counting key; defaults to method+path+clientIP
	KeyFunc KeyFunc
	// Skip exempts a request from this limiter entirely
	Skip func(r *http.Request) bool
	// OnReject overrides the default 429 response
	OnReject func(w http.ResponseWriter, r *http.Request, d Decision)
	// StoreTimeout bounds each store call; an expired timeout fails open
	StoreTimeout time.Duration
}

// Decision is the outcome of checking one request against a limiter
type Decision struct {
	Allowed    bool
	Skipped    bool
	FailedOpen bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
	Key        string
	Err        error
}

// DefaultKeyFunc counts per method+path+client IP
func DefaultKeyFunc(r *http.Request) string {
	return fmt.Sprintf("%s:%s:%s", r.Method, r.URL.Path, httputil.ClientIP(r))
}

// Limiter computes allow/deny decisions per key against a Store
type Limiter struct {
	store  Store
	config Config

	// now is swappable for tests
	now func() time.Time
}

// NewLimiter creates a limiter over the given store, filling config defaults
func NewLimiter(store Store, config Config) *Limiter {
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.StoreTimeout == 0 {
		config.StoreTimeout = 500 * time.Millisecond
	}
	if config.Window == 0 {
		config.Window = 15 * time.Minute
	}
	if config.Max == 0 {
		config.Max = 100
	}
	return &Limiter{
		store:  store,
		config: config,
	}
}

// Store exposes the backing store, for sweeps and tests
func (l *Limiter) Store() Store { return l.store }

// Config exposes the effective configuration
func (l *Limiter) Config() Config { return l.config }

// Check records the request against its key and decides allow/deny.
// Store failures fail open: availability is prioritized over strict quota
// enforcement when the backend is down.
func (l *Limiter) Check(r *http.Request) Decision {
	if l.config.Skip != nil && l.config.Skip(r) {
		return Decision{Allowed: true, Skipped: true, Limit: l.config.Max}
	}

	key := l.config.KeyFunc(r)

	ctx, cancel := context.WithTimeout(r.Context(), l.config.StoreTimeout)
	defer cancel()

	count, resetAt, err := l.store.Increment(ctx, key, l.config.Window)
	if err != nil {
		return Decision{Allowed: true, FailedOpen: true, Limit: l.config.Max, Key: key, Err: err}
	}

	now := l.clock()
	remaining := l.config.Max - count
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= l.config.Max,
		Limit:     l.config.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
		Key:       key,
	}
	if !d.Allowed {
		retry := time.Duration(math.Ceil(resetAt.Sub(now).Seconds())) * time.Second
		if retry < 0 {
			retry = 0
		}
		d.RetryAfter = retry
	}
	return d
}

func (l *Limiter) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// Middleware wires a Limiter into the HTTP pipeline, emitting the
// informational headers on every request and the 429 path on rejection
type Middleware struct {
	limiter    *Limiter
	translator *apierrors.Translator
	metrics    *observability.Metrics
	logger     *observability.Logger
}

// NewMiddleware creates the HTTP adapter for a limiter. metrics may be nil.
func NewMiddleware(limiter *Limiter, translator *apierrors.Translator, metrics *observability.Metrics, logger *observability.Logger) *Middleware {
	return &Middleware{
		limiter:    limiter,
		translator: translator,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handler wraps next with the rate limit check
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(m.limiter, next, w, r)
	})
}

// serve runs one limiter against one request; shared with RoleSelector
func (m *Middleware) serve(limiter *Limiter, next http.Handler, w http.ResponseWriter, r *http.Request) {
	d := limiter.Check(r)
	name := limiter.Config().Name

	switch {
	case d.FailedOpen:
		if m.logger != nil {
			m.logger.WithError(d.Err).
				WithField("preset", name).
				WithField("backend", limiter.Store().Name()).
				Warn("rate limit store failure, failing open")
		}
		if m.metrics != nil {
			m.metrics.RateLimitStoreErrors.WithLabelValues(limiter.Store().Name()).Inc()
			m.metrics.RateLimitDecisions.WithLabelValues(name, "failed_open").Inc()
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	case d.Skipped:
		// no headers: the request was never counted
	default:
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}

	if !d.Allowed {
		if m.metrics != nil {
			m.metrics.RateLimitDecisions.WithLabelValues(name, "denied").Inc()
		}
		w.Header().Set("Retry-After", strconv.FormatInt(int64(d.RetryAfter/time.Second), 10))
		if limiter.Config().OnReject != nil {
			limiter.Config().OnReject(w, r, d)
			return
		}
		m.translator.WriteError(w, r, apierrors.NewRateLimitExceeded("Too many requests, please retry later"))
		return
	}

	if m.metrics != nil && !d.Skipped && !d.FailedOpen {
		m.metrics.RateLimitDecisions.WithLabelValues(name, "allowed").Inc()
	}
	next.ServeHTTP(w, r)
}
