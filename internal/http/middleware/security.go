// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which attaches a conservative set of
// HTTP security headers to JSON responses, and RequireToken, the static
// bearer check in front of the admin API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects the optional headers set by SecurityHeaders.
// HSTS is only sent on HTTPS requests (direct TLS or X-Forwarded-Proto);
// HSTSMaxAge defaults to 180 days. NoStore is for OAuth and other responses
// that must not be cached.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

const defaultHSTSMaxAge = 180 * 24 * time.Hour

type header struct{ key, value string }

// SecurityHeaders sets nosniff, frame denial and no-referrer on every
// response, plus the optional headers selected by opt. The request id is
// added to Access-Control-Expose-Headers when present.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	fixed := []header{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		fixed = append(fixed,
			header{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			header{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	if opt.NoStore {
		fixed = append(fixed,
			header{"Cache-Control", "no-store"},
			header{"Pragma", "no-cache"},
			header{"Expires", "0"},
		)
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range fixed {
			h.Set(kv.key, kv.value)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	switch cur := h.Get(key); {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(cur, name):
		h.Set(key, cur+", "+name)
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// RequireToken rejects requests whose Authorization header does not carry
// "Bearer <token>". An empty token disables the check.
func RequireToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid bearer token",
			})
			return
		}
		c.Next()
	}
}
