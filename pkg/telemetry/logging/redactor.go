package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor redacts PII from log attributes.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternJWT         = "jwt"
	PatternAWSKey      = "aws_access_key"
	PatternGoogleKey   = "google_api_key"
	PatternEmail       = "email"
	PatternGuestID     = "guest_identifier"
	PatternIPv4        = "ipv4"
	PatternPhone       = "phone"
)

// NewRedactor creates a Redactor with the built-in patterns. Patterns are
// applied in order, so token shapes are replaced before the broader
// address patterns run.
func NewRedactor() *Redactor {
	defs := []struct {
		name        string
		regex       string
		replacement string
	}{
		{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternJWT, `eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`, "jwt-***"},
		{PatternAWSKey, `\b(AKIA|ASIA)[A-Z0-9]{16}\b`, "$1***"},
		{PatternGoogleKey, `\bAIza[0-9A-Za-z_-]{35}\b`, "AIza***"},
		{PatternEmail, `\b([a-zA-Z0-9])[a-zA-Z0-9._%+-]*@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})\b`, "$1***@$2"},
		{PatternGuestID, `\bguest_[0-9a-fA-F.:]+\b`, "guest_***"},
		{PatternIPv4, `\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, "$1.*.*.*"},
		{PatternPhone, `\+?\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	}

	r := &Redactor{patterns: make([]*redactPattern, 0, len(defs))}
	for _, d := range defs {
		r.patterns = append(r.patterns, &redactPattern{
			name:        d.name,
			regex:       regexp.MustCompile(d.regex),
			replacement: d.replacement,
		})
	}
	return r
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts a single attribute. Values under sensitive keys are
// replaced outright; other string values are scrubbed by pattern. Groups
// are walked recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if a key name indicates a credential.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{
		"password", "secret", "token", "api_key", "apikey",
		"authorization", "access_key", "session_key", "private_key",
	} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix of a credential for correlation.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
