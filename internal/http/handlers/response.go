// Package handlers implements the REST surface of the marketplace: wishes,
// deals, orders, partners, earnings, and chat. Handlers stay transport-thin;
// they bind and validate input, call one service method, and translate the
// result into the shared JSON envelope.
//
// Every failure, whatever endpoint produced it, renders the same shape:
//
//	{ "request_id": "...", "code": "not_found", "message": "resource not found" }
//
// so clients can branch on `code` and attach `request_id` to bug reports.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wishloop/go-market-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope every endpoint returns. Code values are
// the stable strings in errors.go; Message is display-safe prose.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail writes the error envelope with the given status and aborts the
// handler chain. The request id is echoed from the response header the
// RequestID middleware already set. Only 5xx are logged here; 4xx are the
// client's problem and already appear in the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to the router package for the no-route and no-method
// fallbacks, which live outside this package but must speak the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
