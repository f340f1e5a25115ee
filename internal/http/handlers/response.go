// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints,
// including structured error envelopes, consistent JSON serialization, and
// helpers for common HTTP patterns. The goal is to guarantee uniform responses
// for both success and failure cases, making the API predictable and
// machine-friendly.
//
// Conventions:
//   - All error responses must return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context for observability.
//   - `ok()` and `noContent()` simplify writing success responses in a consistent
//     shape across handlers.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "resource not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "id": "order_NX1", "amount": 9900, "currency": "INR" }
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: Optional correlation ID, echoed from X-Request-ID header, used
//     to correlate server logs with client-side errors.
//   - Code: A stable, machine-readable string (see errors.go constants).
//   - Message: A human-readable error description, safe for display to users.
//
// This struct is used in OpenAPI documentation via Swagger annotations.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It constructs an ErrorResponse, writes it as JSON with the given HTTP status,
// and calls gin.Context.AbortWithStatusJSON to stop further processing.
//
// Server errors (>=500) are logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   msg,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
//
// It serializes `body` as JSON with the given HTTP status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// errorMapping is the HTTP translation of a service error.
type errorMapping struct {
	status  int
	code    string
	message string
}

// mapError translates service sentinels. Anything unrecognised is a 500
// with a generic message; the detail only reaches the logs.
func mapError(err error) errorMapping {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		return errorMapping{http.StatusBadRequest, ErrCodeInvalidAmount, err.Error()}
	case errors.Is(err, services.ErrInvalidInput):
		return errorMapping{http.StatusBadRequest, ErrCodeBadRequest, err.Error()}
	case errors.Is(err, services.ErrSignatureMismatch):
		return errorMapping{http.StatusBadRequest, ErrCodeSignatureMismatch, "payment signature mismatch"}
	case errors.Is(err, services.ErrUnauthenticated):
		return errorMapping{http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"}
	case errors.Is(err, services.ErrForbidden):
		return errorMapping{http.StatusForbidden, ErrCodeForbidden, "admin role required"}
	case errors.Is(err, services.ErrNotPurchased):
		return errorMapping{http.StatusForbidden, ErrCodeNotPurchased, "Not purchased"}
	case errors.Is(err, services.ErrOrderNotFound):
		return errorMapping{http.StatusNotFound, ErrCodeOrderNotFound, "order not found"}
	case errors.Is(err, services.ErrEbookNotFound):
		return errorMapping{http.StatusNotFound, ErrCodeEbookNotFound, "ebook not found"}
	case errors.Is(err, services.ErrBlogNotFound):
		return errorMapping{http.StatusNotFound, ErrCodeBlogNotFound, "blog post not found"}
	case errors.Is(err, services.ErrCommentNotFound):
		return errorMapping{http.StatusNotFound, ErrCodeCommentNotFound, "comment not found"}
	case errors.Is(err, services.ErrSlugTaken):
		return errorMapping{http.StatusConflict, ErrCodeSlugTaken, "slug already in use"}
	case errors.Is(err, services.ErrAlreadyPurchased):
		return errorMapping{http.StatusConflict, ErrCodeAlreadyPurchased, "ebook already purchased"}
	case errors.Is(err, services.ErrGateway):
		return errorMapping{http.StatusInternalServerError, ErrCodeGateway, "payment gateway unavailable"}
	}
	return errorMapping{http.StatusInternalServerError, ErrCodeInternal, "internal server error"}
}

// failErr maps err and writes the envelope. 5xx causes are logged with the
// request-scoped logger.
func failErr(c *gin.Context, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Msg("request failed")
	}
	fail(c, m.status, m.code, m.message)
}

// requestID returns the correlation id written by the RequestID middleware.
func requestID(c *gin.Context) string {
	return c.Writer.Header().Get("X-Request-ID")
}

// logErr records err against the request before a generic 5xx.
func logErr(c *gin.Context, err error, op string) {
	middleware.LoggerFrom(c).Error().Err(err).Str("op", op).Msg("request failed")
}
