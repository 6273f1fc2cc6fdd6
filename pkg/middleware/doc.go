// Package middleware assembles the request pipeline: request-id and client
// IP resolution, request logging, panic recovery, and the mandated stage
// order SecurityInspector -> CSRF -> RateLimiter ahead of per-route
// validation and handlers.
//
// # Usage
//
//	pipeline := middleware.Chain(
//	    middleware.RequestID,
//	    middleware.RequestLogger(logger, metrics),
//	    middleware.Recovery(translator),
//	    inspector.Middleware,
//	    csrf.Middleware(translator),
//	    rateLimit.Handler,
//	)
//	router.Use(mux.MiddlewareFunc(pipeline))
//
// Within a single request the stages execute strictly in chain order and a
// rejection at any stage prevents all later stages from running.
package middleware
