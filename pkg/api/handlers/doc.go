// Package handlers implements the tailor HTTP API on top of the resume
// service.
//
// Every handler derives the caller's quota identity from the verified token
// (if any) and the client address, calls one service operation and writes
// JSON. Failures are mapped to status codes in one place, writeError, so
// quota denials always carry the X-RateLimit-* headers and a structured
// body.
package handlers
