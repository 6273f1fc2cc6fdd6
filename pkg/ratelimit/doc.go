// Package ratelimit implements fixed-window rate limiting over pluggable
// counter stores.
//
// # Overview
//
// A Limiter computes allow/deny decisions per key against a Store. Three
// stores are provided:
//
//   - MemoryStore: mutex-guarded in-process map, for single-instance
//     deployments
//   - SQLStore: a shared relational table (postgres in production, sqlite
//     for local single-node), for multi-instance deployments
//   - RedisStore: shared Redis counters with atomic INCR, also
//     multi-instance safe
//
// # Fail open
//
// Any store failure — including a store-call timeout — allows the request
// through rather than blocking traffic. Availability is prioritized over
// strict quota enforcement on infrastructure failure; failures are counted
// in metrics and logged, never surfaced to callers.
//
// # Presets
//
// Named presets cover the platform's endpoint classes: a general API
// ceiling, a strict auth-endpoint ceiling keyed by IP plus submitted
// identifier, a content-submission ceiling keyed by user when
// authenticated, and a search ceiling skipped for authenticated callers.
// RoleSelector picks a preset from the caller's role at request time.
//
// # Usage
//
//	store := ratelimit.NewMemoryStore()
//	limiter := ratelimit.NewLimiter(store, ratelimit.GeneralPreset())
//	mw := ratelimit.NewMiddleware(limiter, translator, metrics, logger)
//	router.Use(mw.Handler)
package ratelimit
