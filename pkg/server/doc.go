// Package server ties the API handlers, the middleware chain and the
// operational endpoints into one http.Server and manages its lifecycle.
//
// # Routes
//
//   - POST /upload-guest, POST /upload
//   - POST /score, GET /score?resultId=
//   - POST /master, GET /master
//   - POST /tailor, GET /tailor, PUT /tailor/{name}
//   - GET /usage
//   - GET /health (liveness), GET /ready (readiness), GET /version
//   - GET /metrics (Prometheus, when enabled)
//
// Routes marked as user routes by the handlers package are wrapped in
// auth.RequireUser. Every API route records its status and latency under
// its pattern.
//
// # Middleware Chain
//
// Outermost to innermost:
//  1. Recovery: recovers from panics and returns 500
//  2. In-flight gauge (when metrics are enabled)
//  3. RequestID: reuses or generates X-Request-ID
//  4. ClientAddress: resolves the guest identity address
//  5. Logging: one line per request
//  6. Tracing: server span per request
//  7. CORS: preflight and response headers
//  8. Authenticate: verifies bearer tokens when present
//  9. Timeout: bounds the request context
//
// # Graceful Shutdown
//
// Start returns after ctx is cancelled and in-flight requests finish or
// the shutdown timeout elapses:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
