// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token session authentication and partner role
// guards. Auth() resolves the session token to a user ID and stores it in the
// Gin context under "userID" (the same key Logger() and the rate limiter read).
// RequireAgent()/RequireVendor() additionally load the caller's partner profile
// and enforce its role for partner-only routes.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
	"github.com/wishloop/go-market-backend/internal/repo"
)

const (
	// userIDKey is the Gin context key holding the authenticated user ID.
	userIDKey = "userID"
	// partnerKey is the Gin context key holding the loaded partner profile.
	partnerKey = "partner"
)

// Auth returns a middleware that authenticates requests via a session token.
//
// The token is read from the Authorization header ("Bearer <token>") with a
// fallback to the "token" query parameter, which browser WebSocket clients
// need since they cannot set custom headers during the upgrade handshake.
//
// A missing, unknown, or expired token aborts with 401 and the standard JSON
// error envelope.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid session token")
			return
		}
		s, err := repo.GetValidSession(c.Request.Context(), db, token, time.Now().UTC())
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid session token")
				return
			}
			abortAuth(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		c.Set(userIDKey, s.UserID)
		c.Next()
	}
}

// RequireAgent loads the caller's partner profile and aborts with 403 unless
// the partner's role is agent. Must run after Auth().
func RequireAgent(db *gorm.DB) gin.HandlerFunc {
	return requireRole(db, domain.RoleAgent)
}

// RequireVendor loads the caller's partner profile and aborts with 403 unless
// the partner's role is vendor. Must run after Auth().
func RequireVendor(db *gorm.DB) gin.HandlerFunc {
	return requireRole(db, domain.RoleVendor)
}

// RequirePartner loads the caller's partner profile (any role) and aborts with
// 403 when none exists. Must run after Auth().
func RequirePartner(db *gorm.DB) gin.HandlerFunc {
	return requireRole(db, "")
}

func requireRole(db *gorm.DB, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid session token")
			return
		}
		p, err := repo.GetPartner(c.Request.Context(), db, uid)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				abortAuth(c, http.StatusForbidden, "forbidden", "partner profile required")
				return
			}
			abortAuth(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if role != "" && p.Role != role {
			abortAuth(c, http.StatusForbidden, "forbidden", "partner role "+role+" required")
			return
		}
		c.Set(partnerKey, p)
		c.Next()
	}
}

// UserID returns the authenticated user ID set by Auth(), or "" when absent.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PartnerFrom returns the partner profile loaded by a role guard, or nil.
func PartnerFrom(c *gin.Context) *domain.Partner {
	if v, ok := c.Get(partnerKey); ok {
		if p, ok := v.(*domain.Partner); ok {
			return p
		}
	}
	return nil
}

// bearerToken extracts the session token from the Authorization header or the
// "token" query parameter.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		if t := strings.TrimSpace(h[len("bearer "):]); t != "" {
			return t
		}
	}
	return strings.TrimSpace(c.Query("token"))
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
