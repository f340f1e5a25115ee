package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/services"
)

// HeaderWebhookSignature carries hex(HMAC-SHA256(webhook_secret, body)).
const HeaderWebhookSignature = "X-Razorpay-Signature"

// WebhookAck acknowledges a webhook delivery.
type WebhookAck struct {
	Received bool   `json:"received" example:"true"`
	Event    string `json:"event,omitempty" example:"payment.captured"`
	Settled  bool   `json:"settled"`
}

// RazorpayWebhook godoc
// @ID          razorpayWebhook
// @Summary     Gateway webhook
// @Description Receives gateway events. The X-Razorpay-Signature header must be the HMAC of the raw body. payment.captured and order.paid settle the matching pending purchase; other events and unknown orders are acknowledged.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       X-Razorpay-Signature  header  string  true  "Body signature"
//
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Malformed payload"
// @Failure     401  {object} handlers.ErrorResponse "Signature mismatch"
// @Failure     500  {object} handlers.ErrorResponse "Persistence failure"
// @Router      /webhooks/razorpay [post]
func (h *Handlers) RazorpayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	sig := c.GetHeader(HeaderWebhookSignature)
	if sig == "" {
		fail(c, http.StatusUnauthorized, ErrCodeSignatureMismatch, "missing signature")
		return
	}

	res, err := h.payments.HandleWebhook(c.Request.Context(), body, sig)
	switch {
	case errors.Is(err, services.ErrSignatureMismatch):
		middleware.LoggerFrom(c).Warn().Msg("webhook signature mismatch")
		fail(c, http.StatusUnauthorized, ErrCodeSignatureMismatch, "signature mismatch")
		return
	case err != nil:
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WebhookAck{Received: true, Event: res.Event, Settled: res.Settled})
}
