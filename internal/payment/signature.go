// Package payment holds everything that talks the payment gateway's
// language: order creation, the HMAC signature scheme used on checkout
// callbacks and webhooks, and webhook payload decoding.
//
// Signatures are hex(HMAC-SHA256(secret, message)). For checkout callbacks
// the message is "{order_id}|{payment_id}"; for webhooks it is the raw
// request body exactly as received.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of message under secret.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentSignature returns the signature the gateway attaches to a
// successful checkout for (orderID, paymentID).
func PaymentSignature(secret, orderID, paymentID string) string {
	return Sign(secret, []byte(orderID+"|"+paymentID))
}

// VerifyPayment reports whether signature is the valid checkout signature
// for (orderID, paymentID). The comparison is constant time and an empty
// secret never verifies.
func VerifyPayment(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(PaymentSignature(secret, orderID, paymentID)), []byte(signature))
}

// VerifyWebhook reports whether signature matches the raw webhook body.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
