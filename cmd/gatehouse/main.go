package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/newsdeck/gatehouse/pkg/apierrors"
	"github.com/newsdeck/gatehouse/pkg/config"
	"github.com/newsdeck/gatehouse/pkg/httputil"
	"github.com/newsdeck/gatehouse/pkg/middleware"
	"github.com/newsdeck/gatehouse/pkg/observability"
	"github.com/newsdeck/gatehouse/pkg/ratelimit"
	"github.com/newsdeck/gatehouse/pkg/security"
	"github.com/newsdeck/gatehouse/pkg/validation"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	translator := apierrors.NewTranslator(logger, metrics, cfg.Production)

	ctx := context.Background()
	store, db, redisClient, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize rate limit store: %v", err)
	}
	logger.Infof("Rate limit store initialized (backend: %s)", cfg.RateLimit.Backend)

	// Expired windows are swept on a schedule so abandoned keys do not
	// accumulate in the persistent backends
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.RateLimit.SweepInterval), func() {
		defer observability.RecoverPanic(logger, "rate limit sweep")
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.Cleanup(sweepCtx); err != nil {
			logger.WithError(err).Warn("Rate limit sweep failed")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule rate limit sweep: %v", err)
	}
	sweeper.Start()

	secCfg := security.DefaultConfig()
	secCfg.MaxURLLength = cfg.Security.MaxURLLength
	secCfg.MaxHeaderBytes = cfg.Security.MaxHeaderBytes
	secCfg.MaxBodyBytes = cfg.Security.MaxBodyBytes
	secCfg.MaxParamNameLength = cfg.Security.MaxParamNameLength
	secCfg.MaxParamValueLength = cfg.Security.MaxParamValueLength
	secCfg.EnableSQLInjectionCheck = cfg.Security.SQLInjectionCheck
	secCfg.EnableXSSCheck = cfg.Security.XSSCheck
	if err := secCfg.Validate(); err != nil {
		log.Fatalf("Invalid security configuration: %v", err)
	}
	inspector := security.NewInspector(secCfg, logger, metrics)

	secret := []byte(cfg.CSRF.Secret)
	if len(secret) == 0 {
		secret = randomSecret()
		logger.Warn("No CSRF secret configured; using an ephemeral secret, tokens will not survive restarts")
	}
	csrfMgr, err := security.NewCsrfManager(security.CsrfConfig{
		Secret:     secret,
		TTL:        cfg.CSRF.TTL,
		HeaderName: cfg.CSRF.HeaderName,
	}, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize CSRF manager: %v", err)
	}

	selector := ratelimit.NewRoleSelector(store, translator, metrics, logger)
	validate := validation.NewMiddleware(translator, metrics)

	router := buildRouter(store, translator, metrics, logger, csrfMgr, validate)

	pipeline := middleware.Pipeline(middleware.PipelineDeps{
		Logger:     logger,
		Metrics:    metrics,
		Translator: translator,
		Inspector:  inspector,
		CSRF:       csrfMgr,
		RateLimit:  selector.Handler,
	})

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      pipeline(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	sideMux := http.NewServeMux()
	sideMux.HandleFunc("/healthz", health.Liveness)
	sideMux.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		sideMux.Handle("/metrics", metrics.Handler())
	}
	sideServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: sideMux,
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("Gatehouse listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health and metrics listening on %s", sideServer.Addr)
		if err := sideServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sm := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return sideServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := sweeper.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if db != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return db.Close()
		})
	}
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("Gatehouse stopped")
}

// buildStore selects the counter backend. The returned db and redis client
// are nil for backends that do not use them; both feed the readiness probe.
func buildStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, *sql.DB, *redis.Client, error) {
	switch cfg.RateLimit.Backend {
	case "memory":
		return ratelimit.NewMemoryStore(), nil, nil, nil

	case "postgres", "sqlite":
		driver, dsn := "postgres", cfg.RateLimit.PostgresURL
		if cfg.RateLimit.Backend == "sqlite" {
			driver, dsn = "sqlite3", cfg.RateLimit.SQLitePath
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open %s database: %w", driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
		}
		store := ratelimit.NewSQLStore(db)
		if cfg.RateLimit.AtomicIncrement {
			store = store.WithAtomicIncrement()
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ensure rate limit schema: %w", err)
		}
		return store, db, nil, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return ratelimit.NewRedisStore(client, "gatehouse"), nil, client, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown rate limit backend: %s", cfg.RateLimit.Backend)
	}
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate CSRF secret: %v", err)
	}
	secret := make([]byte, hex.EncodedLen(len(buf)))
	hex.Encode(secret, buf)
	return secret
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	idPattern    = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

func loginSchema() validation.Schema {
	return validation.Schema{
		"email": {
			Type:      validation.TypeString,
			Required:  true,
			MaxLength: 254,
			Pattern:   emailPattern,
			Messages: map[string]string{
				validation.CodeInvalidFormat: "must be a valid email address",
			},
		},
		"password": {
			Type:      validation.TypeString,
			Required:  true,
			MinLength: 8,
			MaxLength: 128,
		},
	}
}

func articleSchema() validation.Schema {
	return validation.Schema{
		"title": {
			Type:      validation.TypeString,
			Required:  true,
			MinLength: 3,
			MaxLength: 200,
		},
		"body": {
			Type:      validation.TypeString,
			Required:  true,
			MinLength: 1,
			MaxLength: 50000,
		},
		"category": {
			Type: validation.TypeString,
			Enum: []string{"news", "opinion", "analysis", "sports", "culture"},
		},
		"tags": {
			Type: validation.TypeArray,
			Elem: &validation.Field{Type: validation.TypeString, MaxLength: 40},
		},
	}
}

func searchSchema() validation.Schema {
	return validation.Schema{
		"q": {
			Type:      validation.TypeString,
			Required:  true,
			MinLength: 1,
			MaxLength: 200,
		},
		"page": {
			Type: validation.TypeNumber,
			Min:  validation.Float(1),
		},
		"limit": {
			Type: validation.TypeNumber,
			Min:  validation.Float(1),
			Max:  validation.Float(100),
		},
	}
}

func articleParamsSchema() validation.Schema {
	return validation.Schema{
		"id": {
			Type:     validation.TypeString,
			Required: true,
			Pattern:  idPattern,
			Messages: map[string]string{
				validation.CodeInvalidFormat: "must be a UUID",
			},
		},
	}
}

// buildRouter mounts the guarded demo routes. The handlers here echo the
// validated payload back; a real deployment proxies to the application once
// the pipeline has admitted the request.
func buildRouter(store ratelimit.Store, translator *apierrors.Translator, metrics *observability.Metrics, logger *observability.Logger, csrfMgr *security.CsrfManager, validate *validation.Middleware) *mux.Router {
	authLimiter := ratelimit.NewMiddleware(
		ratelimit.NewLimiter(store, ratelimit.AuthPreset()), translator, metrics, logger)
	submitLimiter := ratelimit.NewMiddleware(
		ratelimit.NewLimiter(store, ratelimit.SubmissionPreset()), translator, metrics, logger)
	searchLimiter := ratelimit.NewMiddleware(
		ratelimit.NewLimiter(store, ratelimit.SearchPreset()), translator, metrics, logger)

	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()

	v1.Handle("/csrf-token", translator.Wrap(csrfMgr.IssueHandler())).Methods("GET")

	v1.Handle("/auth/login",
		authLimiter.Handler(validate.Body(loginSchema())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := validation.ValidatedBody(r)
			httputil.WriteSuccess(w, map[string]interface{}{
				"status": "accepted",
				"email":  body["email"],
			})
		})))).Methods("POST")

	v1.Handle("/articles",
		submitLimiter.Handler(validate.Body(articleSchema())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteCreated(w, map[string]interface{}{
				"status":  "accepted",
				"article": validation.ValidatedBody(r),
			})
		})))).Methods("POST")

	v1.Handle("/articles/{id}",
		validate.Params(articleParamsSchema())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteSuccess(w, map[string]interface{}{
				"id": validation.ValidatedParams(r)["id"],
			})
		}))).Methods("GET")

	v1.Handle("/search",
		searchLimiter.Handler(validate.Query(searchSchema())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteSuccess(w, map[string]interface{}{
				"query":   validation.ValidatedQuery(r),
				"results": []interface{}{},
			})
		})))).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		translator.WriteError(w, r, apierrors.NewNotFound("route not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		translator.WriteError(w, r, apierrors.NewValidation("method not allowed for this route", nil))
	})

	return router
}
