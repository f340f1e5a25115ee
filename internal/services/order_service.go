// Package services – OrderService
//
// OrderService opens gateway orders for checkout. The gateway order is
// always created first; the pending purchase row is written only once the
// gateway has accepted the order, so a gateway failure leaves no trace in
// the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

// OrderInput is a checkout request. Amount is in minor units (paise).
// EbookID is optional; without it only a gateway order is created and no
// entitlement can ever follow from it.
type OrderInput struct {
	Amount  int64
	EbookID string
}

// OrderService creates gateway orders and records pending purchases.
type OrderService struct {
	DB      *gorm.DB
	Gateway payment.Gateway

	// MinAmount is the gateway minimum in minor units.
	MinAmount int64
	// Currency is the single currency orders are placed in.
	Currency string

	Now func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates the request, opens a gateway order and, for ebook
// orders, records (or re-points) the caller's pending purchase.
func (s *OrderService) Create(ctx context.Context, userID string, in OrderInput) (*payment.Order, error) {
	ctx, span := otel.Tracer("services/OrderService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("ebook.id", in.EbookID),
			attribute.Int64("amount", in.Amount),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	if in.Amount < s.MinAmount || in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be at least %d", ErrInvalidAmount, s.MinAmount)
	}

	ebookID := strings.TrimSpace(in.EbookID)
	var existing *domain.Purchase
	if ebookID != "" {
		e, err := repo.GetActiveEbook(ctx, s.DB, ebookID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEbookNotFound
		}
		if err != nil {
			return nil, err
		}
		if in.Amount != e.Price*100 {
			return nil, fmt.Errorf("%w: amount does not match the ebook price", ErrInvalidAmount)
		}
		existing, err = repo.GetPurchaseByUserEbook(ctx, s.DB, userID, ebookID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.IsPaid() {
			return nil, ErrAlreadyPurchased
		}
	}

	req := payment.OrderRequest{
		Amount:   in.Amount,
		Currency: s.Currency,
		Receipt:  payment.Receipt(s.now()),
	}
	if ebookID != "" {
		req.Notes = map[string]string{"ebook_id": ebookID, "user_id": userID}
	}
	order, err := s.Gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if order.Currency == "" {
		order.Currency = s.Currency
	}

	if ebookID == "" {
		ordersCreated.WithLabelValues("false").Inc()
		return order, nil
	}
	if err := s.recordPending(ctx, userID, ebookID, existing, order); err != nil {
		return nil, err
	}
	ordersCreated.WithLabelValues("true").Inc()
	return order, nil
}

// recordPending writes the pending row for order, or adds order to the
// unpaid row already there. Earlier orders for the row stay settleable. A
// concurrent order for the same pair may have inserted first; in that case
// the row is re-read and either extended or reported as already purchased.
func (s *OrderService) recordPending(ctx context.Context, userID, ebookID string, existing *domain.Purchase, order *payment.Order) error {
	for attempt := 0; attempt < 2; attempt++ {
		if existing == nil {
			_, err := repo.CreatePendingPurchase(ctx, s.DB, userID, ebookID, order.ID, order.Amount, order.Currency)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repo.ErrDuplicate) {
				return err
			}
		} else {
			err := repo.AddPurchaseOrder(ctx, s.DB, existing.ID, order.ID, order.Amount, order.Currency)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}

		p, err := repo.GetPurchaseByUserEbook(ctx, s.DB, userID, ebookID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			existing = nil
		case err != nil:
			return err
		case p.IsPaid():
			return ErrAlreadyPurchased
		default:
			existing = p
		}
	}
	return fmt.Errorf("record pending purchase for order %s: concurrent modification", order.ID)
}
