package server

import (
	"net/http"
	"slices"
	"strings"
)

// SecurityConfig is the response-header policy plus the caps that keep a
// single estimate from monopolising the host.
type SecurityConfig struct {
	EnableCORS     bool
	AllowedOrigins []string // "*" admits any origin
	AllowedMethods []string
	MaxSamples     int
	MaxIter        int
}

// DefaultSecurityConfig returns the read-only CORS policy and the default
// estimate caps.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxSamples:     4_000_000,
		MaxIter:        10_000,
	}
}

// allowedOrigin returns the value for Access-Control-Allow-Origin, or "" when
// origin is not admitted.
func (c SecurityConfig) allowedOrigin(origin string) string {
	if slices.Contains(c.AllowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(c.AllowedOrigins, origin) {
		return origin
	}
	return ""
}

var hardeningHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Cache-Control":           "no-store",
}

// SecurityMiddleware sets hardening headers on every response and, with CORS
// enabled, answers preflight requests itself.
func SecurityMiddleware(config SecurityConfig, next http.HandlerFunc) http.HandlerFunc {
	methods := strings.Join(config.AllowedMethods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range hardeningHeaders {
			h.Set(k, v)
		}
		if !config.EnableCORS {
			next(w, r)
			return
		}

		if allow := config.allowedOrigin(r.Header.Get("Origin")); allow != "" {
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
