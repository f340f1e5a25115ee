// Package handlers exposes the store's REST endpoints.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the narrow interfaces below, and translate
// results and service errors into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/services"
)

//
// Service contracts (context-aware)
//

// CatalogService serves the public catalog.
type CatalogService interface {
	ListPage(ctx context.Context, f repo.EbookFilter, page, pageSize int) ([]domain.Ebook, int64, error)
	Get(ctx context.Context, id string) (*domain.Ebook, error)
	Stats(ctx context.Context, f repo.EbookFilter) (int64, *time.Time, error)
	Search(ctx context.Context, q string, limit int) ([]domain.Ebook, error)
}

// AccountService exposes the caller's profile and library.
type AccountService interface {
	Me(ctx context.Context, userID, email string) (*domain.Profile, error)
	Purchases(ctx context.Context, userID string) ([]domain.Purchase, error)
	PurchasesStats(ctx context.Context, userID string) (int64, *time.Time, error)
	DownloadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

// OrderService opens gateway orders.
type OrderService interface {
	Create(ctx context.Context, userID string, in services.OrderInput) (*payment.Order, error)
}

// PaymentService verifies checkout callbacks and webhooks.
type PaymentService interface {
	Verify(ctx context.Context, userID string, in services.VerifyInput) (*services.VerifyResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*services.WebhookResult, error)
}

// EntitlementService issues signed download URLs.
type EntitlementService interface {
	IssueDownload(ctx context.Context, userID, ebookID string) (*services.Download, error)
}

// CheckoutService verifies a payment and issues the download in one call.
type CheckoutService interface {
	Complete(ctx context.Context, userID string, in services.VerifyInput) (*services.CheckoutResult, error)
}

// AdminService performs privileged catalog changes.
type AdminService interface {
	Upload(ctx context.Context, adminID string, in services.UploadInput) (*domain.Ebook, error)
	SoftDelete(ctx context.Context, adminID, ebookID string, purge bool) error
}

// BlogService serves blog posts and comments. Admin methods re-check the
// caller's role.
type BlogService interface {
	ListPublished(ctx context.Context, page, pageSize int) ([]domain.BlogPost, int64, error)
	Read(ctx context.Context, slug string) (*domain.BlogPost, error)
	Comments(ctx context.Context, slug string) ([]domain.BlogComment, error)
	AddComment(ctx context.Context, userID, authorName, slug, body string) (*domain.BlogComment, error)

	ListAll(ctx context.Context, adminID string) ([]domain.BlogPost, error)
	Get(ctx context.Context, adminID, id string) (*domain.BlogPost, error)
	Create(ctx context.Context, adminID, authorName string, in services.BlogPostInput) (*domain.BlogPost, error)
	Update(ctx context.Context, adminID, id string, in services.BlogPostInput) (*domain.BlogPost, error)
	SetStatus(ctx context.Context, adminID, id, status string) (*domain.BlogPost, error)
	Delete(ctx context.Context, adminID, id string) error
	DeleteComment(ctx context.Context, adminID, commentID string) error
}

// IdempotencyRecorder persists responses for Idempotency-Key replays.
type IdempotencyRecorder interface {
	Remember(ctx context.Context, userID, scope, key, requestHash, resourceID string, status int, payload []byte) error
}

// FileStore serves objects behind signed tokens.
type FileStore interface {
	VerifyToken(token, objectPath string) error
	Resolve(objectPath string) (string, error)
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on.
type Deps struct {
	Catalog      CatalogService
	Accounts     AccountService
	Orders       OrderService
	Payments     PaymentService
	Entitlements EntitlementService
	Checkout     CheckoutService
	Admin        AdminService
	Blog         BlogService
	Idempotency  IdempotencyRecorder
	Files        FileStore

	// MaxUploadBytes caps admin multipart uploads.
	MaxUploadBytes int64
}

// Handlers groups all HTTP endpoints.
type Handlers struct {
	catalog      CatalogService
	accounts     AccountService
	orders       OrderService
	payments     PaymentService
	entitlements EntitlementService
	checkout     CheckoutService
	admin        AdminService
	blog         BlogService
	idem         IdempotencyRecorder
	files        FileStore

	maxUploadBytes int64
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &Handlers{
		catalog:        d.Catalog,
		accounts:       d.Accounts,
		orders:         d.Orders,
		payments:       d.Payments,
		entitlements:   d.Entitlements,
		checkout:       d.Checkout,
		admin:          d.Admin,
		blog:           d.Blog,
		idem:           d.Idempotency,
		files:          d.Files,
		maxUploadBytes: maxUpload,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
