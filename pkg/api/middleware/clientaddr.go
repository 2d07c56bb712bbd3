package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const clientAddressKey contextKey = "client_address"

// ClientAddress resolves the caller's network address. With trustedHops
// above zero the address is the X-Forwarded-For entry appended by the
// outermost of that many trusted proxies, counted from the right; entries
// further left are client supplied and ignored. A header with fewer entries
// or an unparsable entry falls back to the connection's remote address.
func ClientAddress(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := remoteHost(r.RemoteAddr)
			if trustedHops > 0 {
				if fwd := forwardedFor(r.Header.Values("X-Forwarded-For"), trustedHops); fwd != "" {
					addr = fwd
				}
			}
			next.ServeHTTP(w, r.WithContext(WithClientAddress(r.Context(), addr)))
		})
	}
}

// WithClientAddress stores addr in ctx.
func WithClientAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddressKey, addr)
}

// ClientAddressFromContext returns the address set by ClientAddress, or "".
func ClientAddressFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddressKey).(string)
	return addr
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// forwardedFor returns the hops-th entry from the right across every
// X-Forwarded-For header line.
func forwardedFor(headers []string, hops int) string {
	var entries []string
	for _, h := range headers {
		for _, e := range strings.Split(h, ",") {
			entries = append(entries, strings.TrimSpace(e))
		}
	}
	if len(entries) < hops {
		return ""
	}
	addr := entries[len(entries)-hops]
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}
