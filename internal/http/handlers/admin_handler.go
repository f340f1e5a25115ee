// Admin HTTP handlers.
//
//   - POST   /admin/ebooks       (multipart upload)
//   - DELETE /admin/ebooks/{id}  (soft-delete, optional ?purge=true)
//
// The admin role is re-checked from the profiles table by the service on
// every call.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/services"
	"github.com/tbourn/engibriefs-store/internal/utils"
)

// multipartMemory is the in-memory part of a parsed upload; the rest spills
// to temp files.
const multipartMemory = 8 << 20

// UploadEbook godoc
// @ID          uploadEbook
// @Summary     Upload an ebook
// @Description Stores the PDF and cover under fresh paths and lists a new ebook. Department is upper-cased.
// @Tags        Admin
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
//
// @Param       title       formData  string  true   "Title"
// @Param       subject     formData  string  true   "Subject"
// @Param       department  formData  string  true   "Department code"  example(CSE)
// @Param       exam        formData  string  false  "Exam tag"
// @Param       price       formData  int     true   "Price in rupees"  minimum(1)
// @Param       pdf         formData  file    true   "Ebook PDF"
// @Param       cover       formData  file    true   "Cover image"
//
// @Success     201  {object} domain.Ebook
// @Failure     400  {object} handlers.ErrorResponse "Invalid form"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     413  {object} handlers.ErrorResponse "Upload too large"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /admin/ebooks [post]
func (h *Handlers) UploadEbook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = c.Request.MultipartForm.RemoveAll() }()

	price, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("price")), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "price must be an integer")
		return
	}

	pdf, closePDF, err := openPart(c, "pdf")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "pdf file is required")
		return
	}
	defer closePDF()
	cover, closeCover, err := openPart(c, "cover")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cover file is required")
		return
	}
	defer closeCover()

	e, err := h.admin.Upload(c.Request.Context(), middleware.UserID(c), services.UploadInput{
		Title:      c.PostForm("title"),
		Subject:    c.PostForm("subject"),
		Department: c.PostForm("department"),
		Exam:       c.PostForm("exam"),
		Price:      price,
		PDF:        pdf,
		Cover:      cover,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// openPart opens the uploaded file field name.
func openPart(c *gin.Context, name string) (services.FileInput, func(), error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return services.FileInput{}, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return services.FileInput{}, func() {}, err
	}
	return services.FileInput{Name: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}

// DeleteEbook godoc
// @ID          deleteEbook
// @Summary     Retire an ebook
// @Description Marks the ebook inactive. It disappears from the catalog but stays downloadable for buyers. purge=true also removes the stored PDF. Repeating the call succeeds.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id     path   string  true   "Ebook ID"
// @Param       purge  query  bool    false  "Delete the stored PDF"  default(false)
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Ebook not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/ebooks/{id} [delete]
func (h *Handlers) DeleteEbook(c *gin.Context) {
	purge := utils.ParseBoolDefault(c.Query("purge"), false)
	if err := h.admin.SoftDelete(c.Request.Context(), middleware.UserID(c), c.Param("id"), purge); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
