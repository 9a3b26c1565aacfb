// Request correlation, access logging, and panic recovery.
//
// RequestID runs first so every response and log line carries a correlation
// ID. Logger attaches a request-scoped zerolog.Logger under the "logger"
// context key and emits one structured access line per request, levelled by
// outcome. Recovery turns panics into the standard JSON 500 envelope.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation ID.
	requestIDKey = "requestID"
	// requestIDHeader propagates the correlation ID on requests and responses.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key holding the request-scoped logger.
	loggerKey = "logger"
	// maxQueryLogLength caps how much of the raw query string is logged.
	maxQueryLogLength = 2048
)

// RequestID reuses the incoming X-Request-ID header when present, otherwise
// generates a UUID. The ID is stored in the context and echoed on the
// response so clients and logs can be correlated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits a structured access log line per request and stores a
// request-scoped logger in the context for downstream enrichment.
//
// The line is logged at error level for 5xx or when the context collected
// errors, warn for 4xx, and info otherwise. The route pattern is preferred
// over the raw path so matched routes aggregate; unmatched requests fall
// back to the raw URL path.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get(userIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set(loggerKey, &l)

		c.Next()

		out := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch status := c.Writer.Status(); {
		case len(c.Errors) > 0:
			out.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			out.Error().Msg("request")
		case status >= 400:
			out.Warn().Msg("request")
		default:
			out.Info().Msg("request")
		}
	}
}

// Recovery converts a panic into a JSON 500 with the correlation ID and logs
// the stack. When the handler already started writing, only the status is
// forced; a partial body cannot be rewritten.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger(), or the
// global logger when none is attached. Never returns nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString unwraps a context value as a string, "" for anything else.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables the
// cap. Byte truncation can split a rune; fine for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
