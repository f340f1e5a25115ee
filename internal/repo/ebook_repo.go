// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Ebook model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Catalog reads (List/Count/GetActive) only ever see rows with
// is_active = true. GetEbook ignores the flag and is used by the entitlement
// path, where soft-deleted ebooks must remain downloadable for their buyers.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// Catalog sort orders accepted by ListActiveEbooksPage.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortTitle     = "title"
)

// EbookFilter narrows catalog queries. Empty fields are ignored.
type EbookFilter struct {
	Department string
	Subject    string
	Exam       string
	Sort       string
}

func (f EbookFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("is_active = ?", true)
	if d := strings.TrimSpace(f.Department); d != "" {
		q = q.Where("department = ?", strings.ToUpper(d))
	}
	if s := strings.TrimSpace(f.Subject); s != "" {
		q = q.Where("LOWER(subject) = ?", strings.ToLower(s))
	}
	if e := strings.TrimSpace(f.Exam); e != "" {
		q = q.Where("LOWER(exam) = ?", strings.ToLower(e))
	}
	return q
}

func (f EbookFilter) order() string {
	switch f.Sort {
	case SortPriceAsc:
		return "price asc, id asc"
	case SortPriceDesc:
		return "price desc, id asc"
	case SortTitle:
		return "title asc, id asc"
	default:
		return "created_at desc, id asc"
	}
}

// CreateEbook inserts e, assigning a UUID and UTC timestamps when unset.
func CreateEbook(ctx context.Context, db *gorm.DB, e *domain.Ebook) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return db.WithContext(ctx).Create(e).Error
}

// GetEbook fetches an ebook by id regardless of its active flag.
func GetEbook(ctx context.Context, db *gorm.DB, id string) (*domain.Ebook, error) {
	var e domain.Ebook
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetActiveEbook fetches an ebook that is still listed in the catalog.
func GetActiveEbook(ctx context.Context, db *gorm.DB, id string) (*domain.Ebook, error) {
	var e domain.Ebook
	err := db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountActiveEbooks returns the number of listed ebooks matching f.
func CountActiveEbooks(ctx context.Context, db *gorm.DB, f EbookFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Ebook{})).Count(&total).Error
	return total, err
}

// ListActiveEbooksPage returns one page of listed ebooks matching f.
func ListActiveEbooksPage(ctx context.Context, db *gorm.DB, f EbookFilter, offset, limit int) ([]domain.Ebook, error) {
	var out []domain.Ebook
	err := f.apply(db.WithContext(ctx).Model(&domain.Ebook{})).
		Order(f.order()).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListActiveEbooks returns every listed ebook, newest first.
func ListActiveEbooks(ctx context.Context, db *gorm.DB) ([]domain.Ebook, error) {
	return ListActiveEbooksPage(ctx, db, EbookFilter{}, 0, -1)
}

// DeactivateEbook flips is_active to false. It reports changed=false when
// the ebook was already inactive, and ErrNotFound when the id is unknown.
func DeactivateEbook(ctx context.Context, db *gorm.DB, id string) (changed bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Ebook{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Ebook{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// GetActiveEbooksByIDs returns the listed ebooks among ids, in no
// particular order. Unknown or inactive ids are silently dropped.
func GetActiveEbooksByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Ebook, error) {
	if len(ids) == 0 {
		return []domain.Ebook{}, nil
	}
	var out []domain.Ebook
	err := db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&out).Error
	return out, err
}
