package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/storage"
)

// coverPrefix is the only object prefix served without a token.
const coverPrefix = "covers/"

// ServeFile streams an object when the token query parameter is a live
// grant for exactly this path. Grants come from the download endpoints.
func (h *Handlers) ServeFile(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	token := c.Query("token")
	if token == "" {
		fail(c, http.StatusForbidden, ErrCodeInvalidToken, "missing token")
		return
	}
	if err := h.files.VerifyToken(token, objectPath); err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		fail(c, http.StatusForbidden, ErrCodeInvalidToken, "invalid or expired token")
		return
	}
	h.sendObject(c, objectPath, "private, no-store")
}

// ServeCover serves public cover images. Only objects under covers/ are
// reachable.
func (h *Handlers) ServeCover(c *gin.Context) {
	objectPath, err := storage.CleanPath(coverPrefix + strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil || !strings.HasPrefix(objectPath, coverPrefix) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
		return
	}
	h.sendObject(c, objectPath, "public, max-age=86400")
}

func (h *Handlers) sendObject(c *gin.Context, objectPath, cacheControl string) {
	full, err := h.files.Resolve(objectPath)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
		return
	}
	c.Header("Cache-Control", cacheControl)
	if strings.EqualFold(path.Ext(objectPath), ".pdf") {
		c.FileAttachment(full, path.Base(objectPath))
		return
	}
	c.File(full)
}
