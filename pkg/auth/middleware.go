package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Authenticate verifies a bearer token when one is present. Requests without
// an Authorization header pass through as guests; requests with a token that
// fails verification get 401.
func Authenticate(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				writeUnauthorized(w, "invalid authorization format, expected: Bearer <token>")
				return
			}

			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				slog.Warn("token rejected",
					"error", err,
					"path", r.URL.Path,
				)
				writeUnauthorized(w, "invalid token")
				return
			}

			slog.Debug("token verified", "subject", claims.Subject, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireUser rejects requests without verified claims.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SubjectFromContext(r.Context()) == "" {
			writeUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tailor"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
