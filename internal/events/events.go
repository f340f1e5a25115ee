// Package events publishes domain events for downstream consumers such as
// fulfilment emails and analytics. Publishing is best effort: callers log
// failures and never roll back the state change that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// TypePurchasePaid is emitted once per purchase, on its pending -> paid
// transition.
const TypePurchasePaid = "purchase.paid"

// PurchasePaid is the payload of TypePurchasePaid.
type PurchasePaid struct {
	PurchaseID string    `json:"purchase_id"`
	UserID     string    `json:"user_id"`
	EbookID    string    `json:"ebook_id"`
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	PaidAt     time.Time `json:"paid_at"`
	Source     string    `json:"source"` // "checkout" or "webhook"
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishPurchasePaid(ctx context.Context, ev PurchasePaid) error
	Close() error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishPurchasePaid(context.Context, PurchasePaid) error { return nil }
func (Noop) Close() error                                            { return nil }

func encode(ev any) ([]byte, error) { return json.Marshal(ev) }
