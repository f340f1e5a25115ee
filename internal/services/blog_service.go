// Package services – BlogService
//
// BlogService serves the store's blog: a paged feed of published posts,
// post reads that count views, and reader comments. Post authoring and
// comment moderation re-read the caller's role from the profiles table on
// every call, the same way catalog administration does.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

const (
	maxSlugLen    = 160
	maxTitleLen   = 255
	maxExcerptLen = 512
	// MaxCommentLen caps a comment body, in characters.
	MaxCommentLen = 2000
)

var (
	slugSepRE = regexp.MustCompile(`[^a-z0-9]+`)
	slugRE    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	slug := strings.Trim(slugSepRE.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// BlogPostInput carries an authored post. An empty Slug is derived from
// the title. Status defaults to published.
type BlogPostInput struct {
	Title   string
	Slug    string
	Excerpt string
	Content string
	Status  string
}

// BlogService reads and administers blog posts and comments.
type BlogService struct {
	DB       *gorm.DB
	Accounts *AccountService

	MaxPageSize int
	Now         func() time.Time
}

func (s *BlogService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ListPublished returns one page of published posts, most recently
// published first, and the total number of published posts.
func (s *BlogService) ListPublished(ctx context.Context, page, pageSize int) ([]domain.BlogPost, int64, error) {
	ctx, span := otel.Tracer("services/BlogService").Start(ctx, "ListPublished",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize)))
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 6
	}
	if s.MaxPageSize > 0 && pageSize > s.MaxPageSize {
		pageSize = s.MaxPageSize
	}

	total, err := repo.CountPublishedBlogPosts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BlogPost{}, 0, nil
	}
	items, err := repo.ListPublishedBlogPostsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Read returns a published post and counts the view. A failed view count
// is logged and does not fail the read.
func (s *BlogService) Read(ctx context.Context, slug string) (*domain.BlogPost, error) {
	ctx, span := otel.Tracer("services/BlogService").Start(ctx, "Read",
		trace.WithAttributes(attribute.String("blog.slug", slug)))
	defer span.End()

	b, err := s.published(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := repo.IncrementBlogViews(ctx, s.DB, b.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("blog_id", b.ID).Msg("count blog view failed")
	} else {
		b.Views++
	}
	return b, nil
}

// Comments lists the comments on a published post, oldest first.
func (s *BlogService) Comments(ctx context.Context, slug string) ([]domain.BlogComment, error) {
	b, err := s.published(ctx, slug)
	if err != nil {
		return nil, err
	}
	return repo.ListBlogComments(ctx, s.DB, b.ID)
}

// AddComment posts a comment as userID on a published post. The body is
// trimmed and must hold 1 to MaxCommentLen characters.
func (s *BlogService) AddComment(ctx context.Context, userID, authorName, slug, body string) (*domain.BlogComment, error) {
	ctx, span := otel.Tracer("services/BlogService").Start(ctx, "AddComment",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("blog.slug", slug)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	body = strings.TrimSpace(body)
	switch n := utf8.RuneCountInString(body); {
	case n == 0:
		return nil, fmt.Errorf("%w: comment is empty", ErrInvalidInput)
	case n > MaxCommentLen:
		return nil, fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidInput, MaxCommentLen)
	}

	b, err := s.published(ctx, slug)
	if err != nil {
		return nil, err
	}
	c := &domain.BlogComment{
		BlogID:     b.ID,
		UserID:     userID,
		AuthorName: strings.TrimSpace(authorName),
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := repo.CreateBlogComment(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListAll returns every post in any status for the admin dashboard.
func (s *BlogService) ListAll(ctx context.Context, adminID string) ([]domain.BlogPost, error) {
	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return repo.ListBlogPosts(ctx, s.DB)
}

// Get returns a post in any status for editing.
func (s *BlogService) Get(ctx context.Context, adminID, id string) (*domain.BlogPost, error) {
	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	b, err := repo.GetBlogPost(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBlogNotFound
	}
	return b, err
}

// Create stores a new post authored by adminID.
func (s *BlogService) Create(ctx context.Context, adminID, authorName string, in BlogPostInput) (*domain.BlogPost, error) {
	ctx, span := otel.Tracer("services/BlogService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", adminID)))
	defer span.End()

	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	ch, err := normalizePost(in)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = domain.BlogPublished
	}
	if status != domain.BlogDraft && status != domain.BlogPublished {
		return nil, fmt.Errorf("%w: status must be DRAFT or PUBLISHED", ErrInvalidInput)
	}

	now := s.now().UTC()
	b := &domain.BlogPost{
		Slug:       ch.Slug,
		Title:      ch.Title,
		Excerpt:    ch.Excerpt,
		Content:    ch.Content,
		AuthorID:   adminID,
		AuthorName: strings.TrimSpace(authorName),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == domain.BlogPublished {
		b.PublishedAt = &now
	}
	if err := repo.CreateBlogPost(ctx, s.DB, b); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return b, nil
}

// Update replaces the title, slug, excerpt and content of post id. The
// status is left alone.
func (s *BlogService) Update(ctx context.Context, adminID, id string, in BlogPostInput) (*domain.BlogPost, error) {
	ctx, span := otel.Tracer("services/BlogService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("user.id", adminID), attribute.String("blog.id", id)))
	defer span.End()

	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	ch, err := normalizePost(in)
	if err != nil {
		return nil, err
	}
	switch err := repo.UpdateBlogPost(ctx, s.DB, id, ch); {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrBlogNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrSlugTaken
	case err != nil:
		return nil, err
	}
	return repo.GetBlogPost(ctx, s.DB, id)
}

// SetStatus publishes or unpublishes post id.
func (s *BlogService) SetStatus(ctx context.Context, adminID, id, status string) (*domain.BlogPost, error) {
	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != domain.BlogDraft && status != domain.BlogPublished {
		return nil, fmt.Errorf("%w: status must be DRAFT or PUBLISHED", ErrInvalidInput)
	}
	err := repo.SetBlogStatus(ctx, s.DB, id, status, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBlogNotFound
	}
	if err != nil {
		return nil, err
	}
	return repo.GetBlogPost(ctx, s.DB, id)
}

// Delete removes post id with its comments.
func (s *BlogService) Delete(ctx context.Context, adminID, id string) error {
	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	err := repo.DeleteBlogPost(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrBlogNotFound
	}
	return err
}

// DeleteComment removes one comment.
func (s *BlogService) DeleteComment(ctx context.Context, adminID, commentID string) error {
	if err := s.Accounts.RequireAdmin(ctx, adminID); err != nil {
		return err
	}
	err := repo.DeleteBlogComment(ctx, s.DB, commentID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrCommentNotFound
	}
	if err == nil {
		zerolog.Ctx(ctx).Info().Str("comment_id", commentID).Str("admin_id", adminID).Msg("comment deleted")
	}
	return err
}

func (s *BlogService) published(ctx context.Context, slug string) (*domain.BlogPost, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrBlogNotFound
	}
	b, err := repo.GetPublishedBlogPostBySlug(ctx, s.DB, slug)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBlogNotFound
	}
	return b, err
}

func normalizePost(in BlogPostInput) (repo.BlogPostChanges, error) {
	ch := repo.BlogPostChanges{
		Title:   strings.Join(strings.Fields(in.Title), " "),
		Excerpt: strings.TrimSpace(in.Excerpt),
		Content: strings.TrimSpace(in.Content),
	}
	ch.Slug = strings.TrimSpace(in.Slug)
	if ch.Slug == "" {
		ch.Slug = Slugify(ch.Title)
	}
	switch {
	case ch.Title == "" || ch.Content == "":
		return ch, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	case utf8.RuneCountInString(ch.Title) > maxTitleLen:
		return ch, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLen)
	case utf8.RuneCountInString(ch.Excerpt) > maxExcerptLen:
		return ch, fmt.Errorf("%w: excerpt exceeds %d characters", ErrInvalidInput, maxExcerptLen)
	case len(ch.Slug) > maxSlugLen || !slugRE.MatchString(ch.Slug):
		return ch, fmt.Errorf("%w: slug must be lower-case letters, digits and single dashes", ErrInvalidInput)
	}
	return ch, nil
}
