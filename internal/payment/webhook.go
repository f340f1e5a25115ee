package payment

import (
	"encoding/json"
	"errors"
)

// Webhook event names that settle a purchase.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

// ErrMalformedWebhook is returned for bodies that are not a gateway event.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// WebhookEvent is the envelope the gateway posts to the webhook endpoint.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// PaymentEntity is the payment object embedded in payment.* events.
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// ParseWebhook decodes a raw webhook body.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, ErrMalformedWebhook
	}
	if ev.Event == "" {
		return nil, ErrMalformedWebhook
	}
	return &ev, nil
}

// Settles reports whether the event marks an order as paid.
func (e *WebhookEvent) Settles() bool {
	return e.Event == EventPaymentCaptured || e.Event == EventOrderPaid
}

// OrderID returns the order the event refers to.
func (e *WebhookEvent) OrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

// PaymentID returns the payment id carried by the event, if any.
func (e *WebhookEvent) PaymentID() string {
	return e.Payload.Payment.Entity.ID
}
