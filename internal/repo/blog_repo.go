// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for blog posts
// and their comments.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// BlogPostChanges are the editable fields of a post.
type BlogPostChanges struct {
	Title   string
	Slug    string
	Excerpt string
	Content string
}

// CreateBlogPost inserts b, assigning an id when empty. It returns
// ErrDuplicate when the slug is taken.
func CreateBlogPost(ctx context.Context, db *gorm.DB, b *domain.BlogPost) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateBlogPost overwrites the editable fields of post id. It returns
// ErrNotFound for an unknown id and ErrDuplicate when the slug is taken.
func UpdateBlogPost(ctx context.Context, db *gorm.DB, id string, ch BlogPostChanges) error {
	res := db.WithContext(ctx).
		Model(&domain.BlogPost{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":      ch.Title,
			"slug":       ch.Slug,
			"excerpt":    ch.Excerpt,
			"content":    ch.Content,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBlogPost returns a post in any status, or ErrNotFound.
func GetBlogPost(ctx context.Context, db *gorm.DB, id string) (*domain.BlogPost, error) {
	var b domain.BlogPost
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetPublishedBlogPostBySlug returns a published post, or ErrNotFound.
func GetPublishedBlogPostBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.BlogPost, error) {
	var b domain.BlogPost
	err := db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, domain.BlogPublished).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountPublishedBlogPosts returns the number of published posts.
func CountPublishedBlogPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.BlogPost{}).
		Where("status = ?", domain.BlogPublished).
		Count(&n).Error
	return n, err
}

// ListPublishedBlogPostsPage returns one page of published posts, most
// recently published first. Content is not loaded.
func ListPublishedBlogPostsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.BlogPost, error) {
	var out []domain.BlogPost
	err := db.WithContext(ctx).
		Omit("content").
		Where("status = ?", domain.BlogPublished).
		Order("published_at desc, created_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListBlogPosts returns every post in any status, newest first, without
// content.
func ListBlogPosts(ctx context.Context, db *gorm.DB) ([]domain.BlogPost, error) {
	var out []domain.BlogPost
	err := db.WithContext(ctx).
		Omit("content").
		Order("created_at desc, id asc").
		Find(&out).Error
	return out, err
}

// IncrementBlogViews adds one view to post id in a single UPDATE.
func IncrementBlogViews(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.BlogPost{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBlogStatus moves post id to status. Publishing stamps published_at
// unless the post was published before.
func SetBlogStatus(ctx context.Context, db *gorm.DB, id, status string, at time.Time) error {
	fields := map[string]any{
		"status":     status,
		"updated_at": at.UTC(),
	}
	if status == domain.BlogPublished {
		fields["published_at"] = gorm.Expr("COALESCE(published_at, ?)", at.UTC())
	}
	res := db.WithContext(ctx).
		Model(&domain.BlogPost{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBlogPost removes post id and its comments.
func DeleteBlogPost(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("blog_id = ?", id).Delete(&domain.BlogComment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.BlogPost{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateBlogComment inserts c, assigning an id and timestamp when empty.
func CreateBlogComment(ctx context.Context, db *gorm.DB, c *domain.BlogComment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

// ListBlogComments returns the comments on post blogID, oldest first.
func ListBlogComments(ctx context.Context, db *gorm.DB, blogID string) ([]domain.BlogComment, error) {
	var out []domain.BlogComment
	err := db.WithContext(ctx).
		Where("blog_id = ?", blogID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// DeleteBlogComment removes comment id, or returns ErrNotFound.
func DeleteBlogComment(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.BlogComment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
