// Package guard enforces the transport rules around the relay: which
// browser origins may call it and how session credentials travel.
package guard

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-training/cvgen-relay/pkg/core"

	"github.com/gin-gonic/gin"
)

// OriginRejectedMessage is the response body error for disallowed origins.
const OriginRejectedMessage = "origin not allowed"

var (
	allowedMethods = []string{"GET", "POST", "OPTIONS"}
	allowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
)

// OriginGuard rejects cross-origin requests whose Origin is not in allowed.
// Requests without an Origin header (same-origin navigations, curl) pass through.
// Allowed origins receive credentialed CORS headers and preflights end with 204.
func OriginGuard(allowed []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowed))
	for _, o := range allowed {
		origins = append(origins, strings.TrimRight(o, "/"))
	}
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		c.Header("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !slices.Contains(origins, origin) {
			core.LoggerFromCtx(c.Request.Context()).Warn("origin rejected", "origin", origin, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": OriginRejectedMessage})
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Max-Age", "86400")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets standard security response headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		if RequestIsSecure(c.Request) {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		c.Next()
	}
}

// RequestIsSecure reports whether r arrived over TLS, directly or behind a proxy.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
