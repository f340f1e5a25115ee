// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics; domain codes name purchase-flow
// outcomes that a status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_purchased",
//	  "message": "Not purchased"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"

	// Domain-specific:
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeGateway           = "gateway_error"
	ErrCodeSignatureMismatch = "signature_mismatch"
	ErrCodeOrderNotFound     = "order_not_found"
	ErrCodeAlreadyPurchased  = "already_purchased"
	ErrCodeNotPurchased      = "not_purchased"
	ErrCodeEbookNotFound     = "ebook_not_found"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeListFailed        = "list_failed"
	ErrCodeBlogNotFound      = "blog_not_found"
	ErrCodeCommentNotFound   = "comment_not_found"
	ErrCodeSlugTaken         = "slug_taken"
)
