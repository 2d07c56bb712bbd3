package middleware

import (
	"net/http"
	"time"
)

// HTTPRecorder receives one observation per request.
type HTTPRecorder interface {
	RecordHTTPRequest(route string, status int, duration time.Duration)
}

// Metrics records the status and latency of requests served under route.
func Metrics(recorder HTTPRecorder, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			recorder.RecordHTTPRequest(route, rw.statusCode, time.Since(start))
		})
	}
}
