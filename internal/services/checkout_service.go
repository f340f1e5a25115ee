package services

import (
	"context"

	"go.opentelemetry.io/otel"
)

// CheckoutResult is the outcome of a verify-and-download request.
type CheckoutResult struct {
	Verify   *VerifyResult
	Download *Download
}

// CheckoutService completes a checkout in one request: it settles the
// payment and, in the same call, issues the download URL. Clients never
// observe the window between the paid write and the entitlement check.
type CheckoutService struct {
	Payments     *PaymentService
	Entitlements *EntitlementService
}

// Complete verifies in and returns a download URL for the settled ebook.
func (s *CheckoutService) Complete(ctx context.Context, userID string, in VerifyInput) (*CheckoutResult, error) {
	ctx, span := otel.Tracer("services/CheckoutService").Start(ctx, "Complete")
	defer span.End()

	v, err := s.Payments.Verify(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	d, err := s.Entitlements.IssueDownload(ctx, userID, v.Purchase.EbookID)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Verify: v, Download: d}, nil
}
