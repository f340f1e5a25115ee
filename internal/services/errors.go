// Package services defines the business logic for the catalog, checkout,
// payment verification, entitlements and housekeeping. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrInvalidInput indicates malformed or missing request fields, or
	// optional cross-check fields that disagree with the stored purchase.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount is returned when an order amount is missing, below the
	// gateway minimum, or does not match the ebook's price.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrGateway wraps failures reported by the payment gateway.
	ErrGateway = errors.New("payment gateway unavailable")

	// ErrSignatureMismatch is returned when a checkout or webhook signature
	// does not verify. It is a security event and never retried.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrOrderNotFound indicates that no purchase exists for the order id,
	// or that it belongs to another user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAlreadyPurchased is returned when a user orders an ebook they
	// already own.
	ErrAlreadyPurchased = errors.New("ebook already purchased")

	// ErrNotPurchased is returned by the entitlement gate when the caller
	// has no paid purchase for the ebook.
	ErrNotPurchased = errors.New("not purchased")

	// ErrEbookNotFound indicates an unknown ebook id, or an inactive one on
	// catalog paths.
	ErrEbookNotFound = errors.New("ebook not found")

	// ErrBlogNotFound indicates an unknown post id, or a post that is not
	// published on reader paths.
	ErrBlogNotFound = errors.New("blog post not found")

	// ErrCommentNotFound indicates an unknown comment id.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrSlugTaken is returned when another post already uses the slug.
	ErrSlugTaken = errors.New("slug already in use")

	// ErrForbidden is returned when the stored profile role does not permit
	// the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated is returned when no caller identity is available.
	ErrUnauthenticated = errors.New("unauthenticated")
)
