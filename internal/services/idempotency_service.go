package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

// IdempotencyService stores completed responses under client-supplied
// Idempotency-Keys so retries replay instead of repeating side effects.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Lookup returns the stored record for (userID, scope, key) if it has not
// expired at now, or nil.
func (s *IdempotencyService) Lookup(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember stores a completed response together with the fingerprint of
// the request body. A concurrent request that stored the same key first
// wins; that is not an error.
func (s *IdempotencyService) Remember(ctx context.Context, userID, scope, key, requestHash, resourceID string, status int, payload []byte) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, requestHash, resourceID, status, payload, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
