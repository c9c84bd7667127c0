package router

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"

	"github.com/gin-gonic/gin"
)

// requestID attaches a request ID to the context and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := core.WithRequestID(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", core.RequestIDFromCtx(ctx))
		c.Next()
	}
}

// accessLog writes one line per request. The query string is left out
// because the callback carries the authorization code there.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		core.LoggerFromCtx(c.Request.Context()).Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// recovery answers a panicking handler with 500 and reports the fault.
func recovery(onFault func(any)) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		core.LoggerFromCtx(c.Request.Context()).Error("handler panic",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"stack", string(debug.Stack()),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		if onFault != nil {
			onFault(recovered)
		}
	})
}
