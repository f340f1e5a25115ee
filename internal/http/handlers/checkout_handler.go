// Checkout HTTP handlers.
//
//   - POST /orders             (open a gateway order, Idempotency-Key aware)
//   - POST /payments/verify    (settle a purchase from the checkout callback)
//   - POST /payments/complete  (settle and issue the download in one call)
//   - POST /downloads          (signed download URL for an owned ebook)
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/services"
)

// CreateOrderRequest is the checkout order request. Amount is in paise.
type CreateOrderRequest struct {
	Amount  int64  `json:"amount" example:"9900"`
	EbookID string `json:"ebookId,omitempty"`
}

// OrderResponse is the gateway order descriptor handed to the checkout widget.
type OrderResponse struct {
	ID       string `json:"id" example:"order_NX1"`
	Amount   int64  `json:"amount" example:"9900"`
	Currency string `json:"currency" example:"INR"`
}

// VerifyPaymentRequest is the checkout callback. ebookId, userId and amount
// are optional cross-checks.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	EbookID   string `json:"ebookId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Amount    *int64 `json:"amount,omitempty"`
}

func (r VerifyPaymentRequest) input() services.VerifyInput {
	return services.VerifyInput{
		OrderID:   r.OrderID,
		PaymentID: r.PaymentID,
		Signature: r.Signature,
		EbookID:   r.EbookID,
		UserID:    r.UserID,
		Amount:    r.Amount,
	}
}

// VerifyPaymentResponse reports a settled purchase.
type VerifyPaymentResponse struct {
	Success          bool `json:"success" example:"true"`
	AlreadyProcessed bool `json:"already_processed"`
}

// VerifyFailureResponse is the error envelope of the payment endpoints.
type VerifyFailureResponse struct {
	Success bool `json:"success" example:"false"`
	ErrorResponse
}

// CompleteCheckoutResponse carries the settled purchase's download.
type CompleteCheckoutResponse struct {
	Success          bool      `json:"success" example:"true"`
	AlreadyProcessed bool      `json:"already_processed"`
	EbookID          string    `json:"ebook_id"`
	URL              string    `json:"url"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// DownloadRequest names the ebook to download.
type DownloadRequest struct {
	EbookID string `json:"ebookId"`
}

// DownloadResponse is a time-boxed signed URL.
type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotPurchasedResponse is the 403 body of the download endpoint.
type NotPurchasedResponse struct {
	Error string `json:"error" example:"Not purchased"`
	ErrorResponse
}

// CreateOrder godoc
// @ID          createOrder
// @Summary     Create a checkout order
// @Description Opens a gateway order for amount (paise). With ebookId the amount must equal the ebook price and a pending purchase is recorded. Retries carrying the same Idempotency-Key replay the first response.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                       false "Client idempotency key"
// @Param       body             body    handlers.CreateOrderRequest  true  "Order"
//
// @Success     200  {object} handlers.OrderResponse
// @Header      200  {string} Idempotency-Replayed "true when served from a stored response"
// @Failure     400  {object} handlers.ErrorResponse "Invalid amount"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     404  {object} handlers.ErrorResponse "Ebook not found"
// @Failure     409  {object} handlers.ErrorResponse "Already purchased"
// @Failure     422  {object} handlers.ErrorResponse "Idempotency-Key reused with a different body"
// @Failure     500  {object} handlers.ErrorResponse "Gateway or configuration failure"
// @Router      /orders [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	if stored, ok := middleware.Replay(c); ok {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	order, err := h.orders.Create(ctx, uid, services.OrderInput{Amount: req.Amount, EbookID: req.EbookID})
	if err != nil {
		failErr(c, err)
		return
	}

	body, err := json.Marshal(OrderResponse{ID: order.ID, Amount: order.Amount, Currency: order.Currency})
	if err != nil {
		logErr(c, err, "encode order")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}
	if key, ok := middleware.GetIdempotencyKey(c); ok && h.idem != nil {
		if err := h.idem.Remember(ctx, uid, middleware.IdempotencyScope(c), key, middleware.RequestFingerprint(c), order.ID, http.StatusOK, body); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("order_id", order.ID).Msg("idempotency record failed")
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// VerifyPayment godoc
// @ID          verifyPayment
// @Summary     Verify a checkout payment
// @Description Checks the gateway signature and marks the caller's purchase paid. Repeated verification of a settled order succeeds with already_processed=true.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.VerifyPaymentRequest  true  "Checkout callback"
//
// @Success     200  {object} handlers.VerifyPaymentResponse
// @Failure     400  {object} handlers.VerifyFailureResponse "Signature mismatch or invalid input"
// @Failure     401  {object} handlers.VerifyFailureResponse "Unauthenticated"
// @Failure     404  {object} handlers.VerifyFailureResponse "Order not found"
// @Failure     500  {object} handlers.VerifyFailureResponse "Persistence failure"
// @Router      /payments/verify [post]
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failVerify(c, services.ErrInvalidInput)
		return
	}
	res, err := h.payments.Verify(c.Request.Context(), middleware.UserID(c), req.input())
	if err != nil {
		failVerify(c, err)
		return
	}
	ok(c, http.StatusOK, VerifyPaymentResponse{Success: true, AlreadyProcessed: res.AlreadyProcessed})
}

// CompleteCheckout godoc
// @ID          completeCheckout
// @Summary     Verify a payment and get the download
// @Description Settles the purchase exactly like /payments/verify, then issues the signed download URL in the same request.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.VerifyPaymentRequest  true  "Checkout callback"
//
// @Success     200  {object} handlers.CompleteCheckoutResponse
// @Failure     400  {object} handlers.VerifyFailureResponse "Signature mismatch or invalid input"
// @Failure     401  {object} handlers.VerifyFailureResponse "Unauthenticated"
// @Failure     404  {object} handlers.VerifyFailureResponse "Order not found"
// @Failure     500  {object} handlers.VerifyFailureResponse "Persistence or signing failure"
// @Router      /payments/complete [post]
func (h *Handlers) CompleteCheckout(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failVerify(c, services.ErrInvalidInput)
		return
	}
	res, err := h.checkout.Complete(c.Request.Context(), middleware.UserID(c), req.input())
	if err != nil {
		failVerify(c, err)
		return
	}
	ok(c, http.StatusOK, CompleteCheckoutResponse{
		Success:          true,
		AlreadyProcessed: res.Verify.AlreadyProcessed,
		EbookID:          res.Download.EbookID,
		URL:              res.Download.URL,
		ExpiresAt:        res.Download.ExpiresAt,
	})
}

// CreateDownload godoc
// @ID          createDownload
// @Summary     Get a download link
// @Description Returns a short-lived signed URL for an ebook the caller has paid for. Retired ebooks stay downloadable for their buyers.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.DownloadRequest  true  "Ebook"
//
// @Success     200  {object} handlers.DownloadResponse
// @Header      200  {string} Cache-Control "no-store"
// @Failure     400  {object} handlers.ErrorResponse "Missing ebookId"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.NotPurchasedResponse "Not purchased"
// @Failure     404  {object} handlers.ErrorResponse "Ebook not found"
// @Failure     500  {object} handlers.ErrorResponse "Signing failure"
// @Router      /downloads [post]
func (h *Handlers) CreateDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EbookID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ebookId is required")
		return
	}
	d, err := h.entitlements.IssueDownload(c.Request.Context(), middleware.UserID(c), req.EbookID)
	if errors.Is(err, services.ErrNotPurchased) {
		m := mapError(err)
		c.AbortWithStatusJSON(m.status, NotPurchasedResponse{
			Error:         m.message,
			ErrorResponse: ErrorResponse{RequestID: requestID(c), Code: m.code, Message: m.message},
		})
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, DownloadResponse{URL: d.URL, ExpiresAt: d.ExpiresAt})
}

// failVerify writes the payment error envelope, which carries success=false.
func failVerify(c *gin.Context, err error) {
	m := mapError(err)
	if m.status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Int("status", m.status).Msg("payment request failed")
	}
	c.AbortWithStatusJSON(m.status, VerifyFailureResponse{
		Success:       false,
		ErrorResponse: ErrorResponse{RequestID: requestID(c), Code: m.code, Message: m.message},
	})
}
