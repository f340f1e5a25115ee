// Catalog HTTP handlers.
//
//   - GET /ebooks          (list, filtered, paginated, weak ETag)
//   - GET /ebooks/search   (free-text search)
//   - GET /ebooks/{id}     (single listed ebook)
//
// Only active ebooks are ever served from these endpoints.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/utils"
)

// ListEbooksResponse wraps a page of ebooks and pagination information.
type ListEbooksResponse struct {
	Ebooks     []domain.Ebook `json:"ebooks"`
	Pagination Pagination     `json:"pagination"`
}

// SearchEbooksResponse holds ranked search hits, best first.
type SearchEbooksResponse struct {
	Query  string         `json:"query"`
	Ebooks []domain.Ebook `json:"ebooks"`
}

var validSorts = map[string]bool{
	"":                 true,
	repo.SortNewest:    true,
	repo.SortPriceAsc:  true,
	repo.SortPriceDesc: true,
	repo.SortTitle:     true,
}

// ListEbooks godoc
// @ID          listEbooks
// @Summary     List ebooks (paginated)
// @Description Returns a page of listed ebooks. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Catalog
// @Produce     json
//
// @Param       department     query   string  false "Department code (case-insensitive)"  example(CSE)
// @Param       subject        query   string  false "Subject (case-insensitive)"
// @Param       exam           query   string  false "Exam tag (case-insensitive)"          example(GATE)
// @Param       sort           query   string  false "Sort order"  Enums(newest, price_asc, price_desc, title) default(newest)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListEbooksResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ebooks [get]
func (h *Handlers) ListEbooks(c *gin.Context) {
	ctx := c.Request.Context()
	f := repo.EbookFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Subject:    strings.TrimSpace(c.Query("subject")),
		Exam:       strings.TrimSpace(c.Query("exam")),
		Sort:       strings.ToLower(strings.TrimSpace(c.Query("sort"))),
	}
	if !validSorts[f.Sort] {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sort must be one of newest, price_asc, price_desc, title")
		return
	}
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), 20, 100)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.catalog.Stats(ctx, f); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"ebooks:%s|%s|%s|%s:%d:%d:%d:%d"`,
			strings.ToUpper(f.Department), strings.ToLower(f.Subject), strings.ToLower(f.Exam), f.Sort,
			page, pageSize, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.catalog.ListPage(ctx, f, page, pageSize)
	if err != nil {
		logErr(c, err, "list ebooks")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list ebooks")
		return
	}
	ok(c, http.StatusOK, ListEbooksResponse{
		Ebooks:     items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// SearchEbooks godoc
// @ID          searchEbooks
// @Summary     Search ebooks
// @Description Ranks listed ebooks by token overlap with q across title, subject, department and exam.
// @Tags        Catalog
// @Produce     json
//
// @Param       q      query  string  true   "Search text"  example(operating systems)
// @Param       limit  query  int     false  "Maximum hits" minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.SearchEbooksResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ebooks/search [get]
func (h *Handlers) SearchEbooks(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	if len(q) > 200 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q must be at most 200 characters")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 20)

	hits, err := h.catalog.Search(c.Request.Context(), q, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SearchEbooksResponse{Query: q, Ebooks: hits})
}

// GetEbook godoc
// @ID          getEbook
// @Summary     Get an ebook
// @Tags        Catalog
// @Produce     json
//
// @Param       id   path  string  true  "Ebook ID"  format(uuid)
//
// @Success     200  {object} domain.Ebook
// @Failure     404  {object} handlers.ErrorResponse "Not listed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /ebooks/{id} [get]
func (h *Handlers) GetEbook(c *gin.Context) {
	e, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}
