// Package security rejects structurally invalid or suspicious requests
// before any business logic sees them.
//
// # Overview
//
// The Inspector runs a fixed check order, each returning a terminal
// decision on first failure: method allow-list (405), path length (414),
// serialized header size (431), content-type allow-list for state-changing
// bodies (415), then a recursive scan of every string value across query
// parameters and body. Scanning rejects over-long names/values and
// SQL-injection-shaped values (400); HTML in the query is rejected while
// HTML in the body is escaped in place, since bodies commonly carry
// free-text that must survive sanitized. Surviving values get whitespace
// normalization and the sanitized copies replace the request's query and
// body.
//
// The heuristics are a best-effort filter, not a security boundary: false
// positives are an accepted cost, and parameterized queries at the data
// access layer remain the real injection defense.
//
// # CSRF
//
// CsrfManager issues per-session anti-forgery tokens (HMAC over session and
// issue time with a server secret, 24h lifetime, one live token per
// session) and verifies them on state-changing methods via the
// x-csrf-token header or a _csrf body/query field.
//
// # Body size
//
// LimitBody wraps the request body with a counting reader that aborts the
// instant the running byte total crosses the ceiling, bounding memory
// exposure regardless of the declared or actual body size.
package security
