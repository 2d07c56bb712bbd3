// Package logging builds the service's structured logger on log/slog.
//
// New returns a plain *slog.Logger whose handler appends the request ID,
// masked identity and trace IDs found in the record's context, and scrubs
// string attributes when redaction is enabled:
//
//   - Bearer tokens and JWTs: eyJhbGci... → jwt-***
//   - Emails: jane@example.com → j***@example.com
//   - Guest identifiers: guest_203.0.113.9 → guest_***
//   - IPv4 addresses: 203.0.113.9 → 203.*.*.*
//   - AWS and Google API keys
//
// Components accept *slog.Logger and use the *Context logging methods so
// request fields follow the call.
package logging
