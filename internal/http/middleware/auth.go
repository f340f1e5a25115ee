// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer authentication and the admin gate. Identity
// comes only from a verified token; the admin role is always re-read from
// the profiles table through an AdminCheck and never taken from token
// claims or headers.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/auth"
)

// Context keys populated by Authenticate.
const (
	ctxKeyUserID = "userID"
	ctxKeyEmail  = "email"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// AdminCheck reports whether userID currently holds the admin role.
type AdminCheck func(ctx context.Context, userID string) (bool, error)

// Authenticate requires a valid "Authorization: Bearer <jwt>" header and
// stores the caller's id and email in the Gin context. Requests without a
// valid token are rejected with 401.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		id, err := v.Verify(raw)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(ctxKeyUserID, id.UserID)
		c.Set(ctxKeyEmail, id.Email)
		c.Next()
	}
}

// RequireAdmin rejects callers whose stored role is not admin with 403.
// It must run after Authenticate.
func RequireAdmin(check AdminCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		isAdmin, err := check(c.Request.Context(), uid)
		if err != nil {
			LoggerFrom(c).Error().Err(err).Msg("admin role lookup failed")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if !isAdmin {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return ctxString(c, ctxKeyUserID)
}

// Email returns the authenticated user's email, or "".
func Email(c *gin.Context) string {
	return ctxString(c, ctxKeyEmail)
}

func ctxString(c *gin.Context, key string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// abortJSON writes the standard error envelope and stops the chain.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
