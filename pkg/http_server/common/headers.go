package common

import (
	"errors"
	"net/http"
	"slices"
	"strings"
)

// SecurityHeaders are response headers set on every response. The service
// only serves JSON and plain text, so the content policy forbids everything.
type SecurityHeaders map[string]string

// DefaultSecurityHeaders returns the headers for an API. HSTS is only sent in
// production, where TLS terminates in front of the service.
func DefaultSecurityHeaders(production bool) SecurityHeaders {
	headers := SecurityHeaders{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	if production {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
	}
	return headers
}

// Apply sets the headers on w.
func (h SecurityHeaders) Apply(w http.ResponseWriter) {
	for k, v := range h {
		w.Header().Set(k, v)
	}
}

// Origins is a parsed CORS allow-list.
type Origins []string

// ParseOrigins splits a comma separated list. "*" must stand alone.
func ParseOrigins(raw string) (Origins, error) {
	var origins Origins
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			origins = append(origins, p)
		}
	}

	if len(origins) > 1 && slices.Contains(origins, "*") {
		return nil, errors.New("wildcard (*) cannot be combined with other origins")
	}
	return origins, nil
}

// Wildcard reports whether every origin is allowed.
func (o Origins) Wildcard() bool {
	return len(o) == 1 && o[0] == "*"
}

// Allows reports whether origin may call the service.
func (o Origins) Allows(origin string) bool {
	return o.Wildcard() || slices.Contains(o, origin)
}
