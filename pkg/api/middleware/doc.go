// Package middleware provides the HTTP middleware chain for the tailor API.
//
// The chain, outermost first, is:
//
//	Recovery -> RequestID -> ClientAddress -> Logging -> Tracing -> CORS -> auth -> Timeout -> mux
//
// Per-route wrappers (Metrics) are applied when routes are registered so the
// route pattern is known without inspecting the request.
package middleware
