// Package services – EntitlementService
//
// EntitlementService is the download gate. A signed URL is issued only
// when the caller holds a paid purchase for the ebook; the answer is always
// derived from the purchases table and never cached.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/repo"
)

// URLSigner issues time-boxed URLs for stored objects.
type URLSigner interface {
	SignURL(objectPath string) (string, time.Time, error)
}

// Download is a signed URL for one ebook file.
type Download struct {
	EbookID   string
	URL       string
	ExpiresAt time.Time
}

// EntitlementService issues download URLs to entitled users.
type EntitlementService struct {
	DB     *gorm.DB
	Signer URLSigner
	Now    func() time.Time
}

func (s *EntitlementService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueDownload returns a signed URL for ebookID when userID has paid for
// it. Soft-deleted ebooks stay downloadable for their buyers. The audit
// log write is best effort.
func (s *EntitlementService) IssueDownload(ctx context.Context, userID, ebookID string) (*Download, error) {
	ctx, span := otel.Tracer("services/EntitlementService").Start(ctx, "IssueDownload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("ebook.id", ebookID),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(ebookID) == "" {
		return nil, ErrInvalidInput
	}

	if _, err := repo.GetPaidPurchase(ctx, s.DB, userID, ebookID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotPurchased
		}
		return nil, err
	}
	e, err := repo.GetEbook(ctx, s.DB, ebookID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEbookNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := repo.CreateDownloadLog(ctx, s.DB, userID, ebookID, s.now()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("ebook_id", ebookID).Msg("download log write failed")
	}

	url, exp, err := s.Signer.SignURL(e.FilePath)
	if err != nil {
		return nil, err
	}
	downloadsIssued.Inc()
	return &Download{EbookID: ebookID, URL: url, ExpiresAt: exp}, nil
}
