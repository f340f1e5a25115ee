// Package services – PaymentService
//
// PaymentService settles purchases. It is the only code path that moves a
// purchase to paid, and it only does so after the gateway's HMAC signature
// has verified. Any order ever issued for a purchase can settle it, as can
// a late payment for a purchase the sweeper expired. The transition is a
// conditional update on payment_status IN ('pending','expired'), so retries
// and concurrent callers settle a row exactly once; every caller after the
// first observes an already-processed success rather than an error.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/events"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

// VerifyInput is the checkout callback forwarded by the client. EbookID,
// UserID and Amount are optional cross-checks against the stored row.
type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string

	EbookID string
	UserID  string
	Amount  *int64
}

// VerifyResult reports the settled purchase.
type VerifyResult struct {
	Purchase         *domain.Purchase
	AlreadyProcessed bool
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	Event   string
	OrderID string
	Settled bool
}

// PaymentService verifies gateway signatures and settles purchases.
type PaymentService struct {
	DB *gorm.DB

	// KeySecret signs checkout callbacks.
	KeySecret string
	// WebhookSecret signs webhook bodies.
	WebhookSecret string

	Events events.Publisher
	Now    func() time.Time
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Verify checks the checkout signature and settles the caller's purchase.
func (s *PaymentService) Verify(ctx context.Context, userID string, in VerifyInput) (*VerifyResult, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Verify",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("order.id", in.OrderID),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		verifications.WithLabelValues("checkout", resultInvalid).Inc()
		return nil, fmt.Errorf("%w: razorpay_order_id, razorpay_payment_id and razorpay_signature are required", ErrInvalidInput)
	}
	if !payment.VerifyPayment(s.KeySecret, in.OrderID, in.PaymentID, in.Signature) {
		verifications.WithLabelValues("checkout", resultSignatureMismatch).Inc()
		zerolog.Ctx(ctx).Warn().Str("order_id", in.OrderID).Str("user_id", userID).Msg("payment signature mismatch")
		return nil, ErrSignatureMismatch
	}

	o, err := repo.GetPurchaseOrder(ctx, s.DB, in.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		verifications.WithLabelValues("checkout", resultNotFound).Inc()
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Purchase.UserID != userID {
		verifications.WithLabelValues("checkout", resultNotFound).Inc()
		return nil, ErrOrderNotFound
	}
	if err := crossCheck(o, in); err != nil {
		verifications.WithLabelValues("checkout", resultInvalid).Inc()
		return nil, err
	}

	return s.settle(ctx, o, in.PaymentID, "checkout")
}

// HandleWebhook authenticates a raw webhook body and settles the order it
// refers to. Unknown events and unknown orders are acknowledged without
// changes.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "HandleWebhook")
	defer span.End()

	if !payment.VerifyWebhook(s.WebhookSecret, body, signature) {
		verifications.WithLabelValues("webhook", resultSignatureMismatch).Inc()
		return nil, ErrSignatureMismatch
	}
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		verifications.WithLabelValues("webhook", resultInvalid).Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	span.SetAttributes(attribute.String("webhook.event", ev.Event), attribute.String("order.id", ev.OrderID()))

	out := &WebhookResult{Event: ev.Event, OrderID: ev.OrderID()}
	if !ev.Settles() || out.OrderID == "" {
		verifications.WithLabelValues("webhook", resultIgnored).Inc()
		return out, nil
	}

	o, err := repo.GetPurchaseOrder(ctx, s.DB, out.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		verifications.WithLabelValues("webhook", resultNotFound).Inc()
		zerolog.Ctx(ctx).Info().Str("order_id", out.OrderID).Str("event", ev.Event).Msg("webhook for unknown order")
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	res, err := s.settle(ctx, o, ev.PaymentID(), "webhook")
	if err != nil {
		return nil, err
	}
	out.Settled = !res.AlreadyProcessed
	return out, nil
}

// settle runs the unpaid -> paid compare-and-swap for the purchase order o
// belongs to, recording o as the paying order.
func (s *PaymentService) settle(ctx context.Context, o *domain.PurchaseOrder, paymentID, source string) (*VerifyResult, error) {
	if p := &o.Purchase; p.IsPaid() {
		s.observeAlreadyPaid(ctx, p, o.OrderID, source)
		return &VerifyResult{Purchase: p, AlreadyProcessed: true}, nil
	}

	paidAt := s.now().UTC()
	won, err := repo.MarkPurchasePaid(ctx, s.DB, o.OrderID, paymentID, paidAt)
	if err != nil {
		return nil, err
	}

	cur, err := repo.GetPurchaseByOrderID(ctx, s.DB, o.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		verifications.WithLabelValues(source, resultNotFound).Inc()
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !won {
		if !cur.IsPaid() {
			verifications.WithLabelValues(source, resultNotFound).Inc()
			return nil, ErrOrderNotFound
		}
		s.observeAlreadyPaid(ctx, cur, o.OrderID, source)
		return &VerifyResult{Purchase: cur, AlreadyProcessed: true}, nil
	}

	verifications.WithLabelValues(source, resultPaid).Inc()
	s.publishPaid(ctx, cur, source)
	return &VerifyResult{Purchase: cur}, nil
}

// observeAlreadyPaid counts a settlement for a purchase that is already
// paid. A second order paying the same purchase is a double charge and is
// logged for a manual refund.
func (s *PaymentService) observeAlreadyPaid(ctx context.Context, p *domain.Purchase, orderID, source string) {
	if p.OrderID == orderID {
		verifications.WithLabelValues(source, resultAlreadyProcessed).Inc()
		return
	}
	verifications.WithLabelValues(source, resultDuplicatePayment).Inc()
	zerolog.Ctx(ctx).Warn().
		Str("purchase_id", p.ID).
		Str("paid_order_id", p.OrderID).
		Str("order_id", orderID).
		Str("source", source).
		Msg("second order paid for an already paid purchase")
}

func (s *PaymentService) publishPaid(ctx context.Context, p *domain.Purchase, source string) {
	if s.Events == nil {
		return
	}
	ev := events.PurchasePaid{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		EbookID:    p.EbookID,
		OrderID:    p.OrderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Source:     source,
	}
	if p.PaymentID != nil {
		ev.PaymentID = *p.PaymentID
	}
	if p.PurchasedAt != nil {
		ev.PaidAt = p.PurchasedAt.UTC()
	}
	if err := s.Events.PublishPurchasePaid(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", p.OrderID).Msg("publish purchase.paid failed")
	}
}

// crossCheck compares the optional client-supplied fields with the order
// and its purchase.
func crossCheck(o *domain.PurchaseOrder, in VerifyInput) error {
	p := &o.Purchase
	if in.EbookID != "" && in.EbookID != p.EbookID {
		return fmt.Errorf("%w: ebookId does not match the order", ErrInvalidInput)
	}
	if in.UserID != "" && in.UserID != p.UserID {
		return fmt.Errorf("%w: userId does not match the order", ErrInvalidInput)
	}
	if in.Amount != nil && *in.Amount != o.Amount {
		return fmt.Errorf("%w: amount does not match the order", ErrInvalidInput)
	}
	return nil
}
