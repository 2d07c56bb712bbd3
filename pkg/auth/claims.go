// Package auth verifies caller identity tokens and carries the resulting
// claims through request contexts.
//
// Requests without a token are guests. Requests with a token must present a
// valid one; a bad token is always rejected rather than downgraded to guest.
package auth

import "context"

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// Claims are the verified fields of an identity token.
type Claims struct {
	// Subject is the stable user identifier (sub claim).
	Subject string `json:"sub"`

	// Email is the user's e-mail address, when present.
	Email string `json:"email,omitempty"`

	// Username is the provider user name (cognito:username or username).
	Username string `json:"username,omitempty"`

	// Issuer is the token issuer.
	Issuer string `json:"iss,omitempty"`
}

// ClaimsFromContext returns the verified claims, or nil for guests.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a context carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// SubjectFromContext returns the verified subject or "".
func SubjectFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
