package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// ErrGateway wraps every failure reported by, or on the way to, the gateway.
var ErrGateway = errors.New("payment gateway error")

// OrderRequest describes a charge to open at the gateway.
type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway order descriptor returned to checkout clients.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// Gateway creates orders at a payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// Receipt builds the merchant receipt reference for an order opened at t.
func Receipt(t time.Time) string {
	return "order_" + strconv.FormatInt(t.UnixMilli(), 10)
}

// orderCreator is the subset of the Razorpay SDK order resource we use.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway creates orders through the Razorpay REST API.
type RazorpayGateway struct {
	orders  orderCreator
	timeout time.Duration
}

// NewRazorpayGateway builds a gateway authenticated with the given key pair.
func NewRazorpayGateway(keyID, keySecret string, timeout time.Duration) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, timeout: timeout}
}

// CreateOrder opens an order. The SDK call is not context aware, so it runs
// in its own goroutine and the caller stops waiting when ctx ends or the
// configured timeout elapses.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := g.orders.Create(data, nil)
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrGateway, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, r.err)
		}
		return decodeOrder(r.body)
	}
}

func decodeOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: order response without id", ErrGateway)
	}
	amount, err := toInt64(body["amount"])
	if err != nil {
		return nil, fmt.Errorf("%w: order amount: %v", ErrGateway, err)
	}
	currency, _ := body["currency"].(string)
	receipt, _ := body["receipt"].(string)
	return &Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
