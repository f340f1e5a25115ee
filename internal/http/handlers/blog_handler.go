// Blog HTTP handlers.
//
//   - GET    /blogs                      (published feed, paginated)
//   - GET    /blogs/{slug}               (single post, counts a view)
//   - GET    /blogs/{slug}/comments      (comments, oldest first)
//   - POST   /blogs/{slug}/comments      (signed-in readers)
//   - GET    /admin/blogs                (every post, any status)
//   - GET    /admin/blogs/{id}
//   - POST   /admin/blogs
//   - PUT    /admin/blogs/{id}
//   - PATCH  /admin/blogs/{id}/status
//   - DELETE /admin/blogs/{id}
//   - DELETE /admin/comments/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/services"
	"github.com/tbourn/engibriefs-store/internal/utils"
)

// ListBlogsResponse wraps a page of published posts. Post bodies are
// omitted from the feed.
type ListBlogsResponse struct {
	Blogs      []domain.BlogPost `json:"blogs"`
	Pagination Pagination        `json:"pagination"`
}

// CommentsResponse lists the comments on a post.
type CommentsResponse struct {
	Comments []domain.BlogComment `json:"comments"`
}

// AdminBlogsResponse lists every post for the dashboard.
type AdminBlogsResponse struct {
	Blogs []domain.BlogPost `json:"blogs"`
}

// CreateCommentRequest is the body of POST /blogs/{slug}/comments.
type CreateCommentRequest struct {
	Body string `json:"body" example:"Very helpful, thanks!"`
}

// BlogPostRequest is the body of POST and PUT /admin/blogs. An empty slug
// is derived from the title.
type BlogPostRequest struct {
	Title   string `json:"title" example:"How to prepare for GATE CSE"`
	Slug    string `json:"slug,omitempty" example:"how-to-prepare-for-gate-cse"`
	Excerpt string `json:"excerpt,omitempty"`
	Content string `json:"content"`
	Status  string `json:"status,omitempty" enums:"DRAFT,PUBLISHED"`
}

func (r BlogPostRequest) input() services.BlogPostInput {
	return services.BlogPostInput{Title: r.Title, Slug: r.Slug, Excerpt: r.Excerpt, Content: r.Content, Status: r.Status}
}

// BlogStatusRequest is the body of PATCH /admin/blogs/{id}/status.
type BlogStatusRequest struct {
	Status string `json:"status" enums:"DRAFT,PUBLISHED"`
}

// ListBlogs godoc
// @ID          listBlogs
// @Summary     List published blog posts
// @Description Most recently published first. Bodies are omitted; fetch a post by slug to read it.
// @Tags        Blog
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(50) default(6)
//
// @Success     200  {object} handlers.ListBlogsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /blogs [get]
func (h *Handlers) ListBlogs(c *gin.Context) {
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), 6, 50)
	items, total, err := h.blog.ListPublished(c.Request.Context(), page, pageSize)
	if err != nil {
		logErr(c, err, "list blogs")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list blog posts")
		return
	}
	ok(c, http.StatusOK, ListBlogsResponse{Blogs: items, Pagination: newPagination(page, pageSize, total)})
}

// GetBlog godoc
// @ID          getBlog
// @Summary     Read a blog post
// @Description Returns a published post and counts the view.
// @Tags        Blog
// @Produce     json
//
// @Param       slug  path  string  true  "Post slug"
//
// @Success     200  {object} domain.BlogPost
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /blogs/{slug} [get]
func (h *Handlers) GetBlog(c *gin.Context) {
	b, err := h.blog.Read(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// ListComments godoc
// @ID          listComments
// @Summary     List comments on a post
// @Tags        Blog
// @Produce     json
//
// @Param       slug  path  string  true  "Post slug"
//
// @Success     200  {object} handlers.CommentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /blogs/{slug}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	list, err := h.blog.Comments(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CommentsResponse{Comments: list})
}

// CreateComment godoc
// @ID          createComment
// @Summary     Comment on a post
// @Description Posts a comment as the signed-in user. The body is trimmed and must hold 1 to 2000 characters.
// @Tags        Blog
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       slug  path  string                         true  "Post slug"
// @Param       body  body  handlers.CreateCommentRequest  true  "Comment"
//
// @Success     201  {object} domain.BlogComment
// @Failure     400  {object} handlers.ErrorResponse "Invalid comment"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /blogs/{slug}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cm, err := h.blog.AddComment(c.Request.Context(), middleware.UserID(c), middleware.Email(c), c.Param("slug"), req.Body)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// AdminListBlogs godoc
// @ID          adminListBlogs
// @Summary     List all blog posts
// @Description Drafts and published posts, newest first, without bodies.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.AdminBlogsResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/blogs [get]
func (h *Handlers) AdminListBlogs(c *gin.Context) {
	list, err := h.blog.ListAll(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AdminBlogsResponse{Blogs: list})
}

// AdminGetBlog godoc
// @ID          adminGetBlog
// @Summary     Get a blog post for editing
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Post ID"
//
// @Success     200  {object} domain.BlogPost
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Router      /admin/blogs/{id} [get]
func (h *Handlers) AdminGetBlog(c *gin.Context) {
	b, err := h.blog.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// CreateBlog godoc
// @ID          createBlog
// @Summary     Write a blog post
// @Description Status defaults to PUBLISHED. The slug is derived from the title when omitted.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.BlogPostRequest  true  "Post"
//
// @Success     201  {object} domain.BlogPost
// @Failure     400  {object} handlers.ErrorResponse "Invalid post"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     409  {object} handlers.ErrorResponse "Slug in use"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/blogs [post]
func (h *Handlers) CreateBlog(c *gin.Context) {
	var req BlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	b, err := h.blog.Create(c.Request.Context(), middleware.UserID(c), middleware.Email(c), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, b)
}

// UpdateBlog godoc
// @ID          updateBlog
// @Summary     Edit a blog post
// @Description Replaces title, slug, excerpt and content. Status is changed through the status endpoint.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                    true  "Post ID"
// @Param       body  body  handlers.BlogPostRequest  true  "Post"
//
// @Success     200  {object} domain.BlogPost
// @Failure     400  {object} handlers.ErrorResponse "Invalid post"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     409  {object} handlers.ErrorResponse "Slug in use"
// @Router      /admin/blogs/{id} [put]
func (h *Handlers) UpdateBlog(c *gin.Context) {
	var req BlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	b, err := h.blog.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// SetBlogStatus godoc
// @ID          setBlogStatus
// @Summary     Publish or unpublish a post
// @Description The first publish stamps published_at; later toggles keep it.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "Post ID"
// @Param       body  body  handlers.BlogStatusRequest  true  "Status"
//
// @Success     200  {object} domain.BlogPost
// @Failure     400  {object} handlers.ErrorResponse "Invalid status"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Router      /admin/blogs/{id}/status [patch]
func (h *Handlers) SetBlogStatus(c *gin.Context) {
	var req BlogStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	b, err := h.blog.SetStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// DeleteBlog godoc
// @ID          deleteBlog
// @Summary     Delete a blog post
// @Description Removes the post and its comments.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Post ID"
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Router      /admin/blogs/{id} [delete]
func (h *Handlers) DeleteBlog(c *gin.Context) {
	if err := h.blog.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteComment godoc
// @ID          deleteComment
// @Summary     Delete a comment
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Comment ID"
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "Comment not found"
// @Router      /admin/comments/{id} [delete]
func (h *Handlers) DeleteComment(c *gin.Context) {
	if err := h.blog.DeleteComment(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
