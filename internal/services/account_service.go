package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

// AccountService exposes the caller's own profile and library.
type AccountService struct {
	DB *gorm.DB
}

// Me returns the caller's profile, creating a user-role profile on first
// sight of the identity.
func (s *AccountService) Me(ctx context.Context, userID, email string) (*domain.Profile, error) {
	ctx, span := otel.Tracer("services/AccountService").Start(ctx, "Me")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	return repo.EnsureProfile(ctx, s.DB, userID, email)
}

// IsAdmin reads the role from the profiles table. Unknown users are not
// administrators.
func (s *AccountService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrUnauthenticated
	}
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin(), nil
}

// RequireAdmin returns ErrForbidden unless the stored role of userID is
// admin.
func (s *AccountService) RequireAdmin(ctx context.Context, userID string) error {
	ok, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// SetRole grants or revokes a role for userID, creating the profile first
// when the identity has never called the API. Only "user" and "admin" are
// accepted.
func (s *AccountService) SetRole(ctx context.Context, userID, email, role string) (*domain.Profile, error) {
	ctx, span := otel.Tracer("services/AccountService").Start(ctx, "SetRole")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := repo.EnsureProfile(ctx, s.DB, userID, email); err != nil {
		return nil, err
	}
	if err := repo.SetProfileRole(ctx, s.DB, userID, role); err != nil {
		return nil, err
	}
	return repo.GetProfile(ctx, s.DB, userID)
}

// Purchases lists the caller's paid purchases, including ebooks that have
// since been retired from the catalog.
func (s *AccountService) Purchases(ctx context.Context, userID string) ([]domain.Purchase, error) {
	ctx, span := otel.Tracer("services/AccountService").Start(ctx, "Purchases")
	defer span.End()

	return repo.ListPaidPurchases(ctx, s.DB, userID)
}

// DownloadCounts returns how many download URLs the caller has been issued
// per ebook id.
func (s *AccountService) DownloadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	return repo.CountDownloadLogs(ctx, s.DB, userID)
}

// PurchasesStats returns the count and last modification time of the
// caller's paid purchases, for conditional responses.
func (s *AccountService) PurchasesStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.PaidPurchasesStats(ctx, s.DB, userID)
}
