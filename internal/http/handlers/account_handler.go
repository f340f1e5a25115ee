// Account HTTP handlers.
//
//   - GET /me          (caller profile and role)
//   - GET /purchases   (caller's paid library with download counts, weak ETag)
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/http/middleware"
)

// ProfileResponse is the caller's stored profile.
type ProfileResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role" example:"user"`
	IsAdmin bool   `json:"is_admin"`
}

// LibraryEbook is the ebook summary embedded in a purchase.
type LibraryEbook struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Subject    string  `json:"subject"`
	Department string  `json:"department"`
	Exam       *string `json:"exam,omitempty"`
	CoverPath  string  `json:"cover_path"`
	// Listed is false once the ebook has been retired; it stays downloadable.
	Listed bool `json:"listed"`
}

// PurchaseView is one paid purchase in the caller's library.
type PurchaseView struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	// Downloads is how many download URLs the caller has been issued.
	Downloads int64        `json:"downloads"`
	Ebook     LibraryEbook `json:"ebook"`
}

// ListPurchasesResponse wraps the caller's library.
type ListPurchasesResponse struct {
	Purchases []PurchaseView `json:"purchases"`
}

func newPurchaseView(p domain.Purchase, downloads int64) PurchaseView {
	return PurchaseView{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PurchasedAt: p.PurchasedAt,
		Downloads:   downloads,
		Ebook: LibraryEbook{
			ID:         p.EbookID,
			Title:      p.Ebook.Title,
			Subject:    p.Ebook.Subject,
			Department: p.Ebook.Department,
			Exam:       p.Ebook.Exam,
			CoverPath:  p.Ebook.CoverPath,
			Listed:     p.Ebook.IsActive,
		},
	}
}

// Me godoc
// @ID          getMe
// @Summary     Current profile
// @Description Returns the caller's profile, creating a user-role profile on first call. The role is read from the server's profile table.
// @Tags        Account
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.ProfileResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.accounts.Me(c.Request.Context(), middleware.UserID(c), middleware.Email(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{ID: p.ID, Email: p.Email, Role: p.Role, IsAdmin: p.IsAdmin()})
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     My purchases
// @Description Lists the caller's paid purchases, newest first, including ebooks since retired from the catalog, with how often each was downloaded. Supports weak ETag.
// @Tags        Account
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListPurchasesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	downloads, err := h.accounts.DownloadCounts(ctx, uid)
	if err != nil {
		logErr(c, err, "count downloads")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list purchases")
		return
	}
	var issued int64
	for _, n := range downloads {
		issued += n
	}

	if count, maxTS, err := h.accounts.PurchasesStats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"purchases:%s:%d:%d:%d"`, uid, count, ts, issued)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.accounts.Purchases(ctx, uid)
	if err != nil {
		logErr(c, err, "list purchases")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list purchases")
		return
	}
	out := make([]PurchaseView, 0, len(items))
	for _, p := range items {
		out = append(out, newPurchaseView(p, downloads[p.EbookID]))
	}
	ok(c, http.StatusOK, ListPurchasesResponse{Purchases: out})
}
