package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// GetProfile returns the profile for an auth user id, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile creates a profile with the ordinary user role on first
// sight of an identity. An existing row, and in particular its role, is
// left untouched.
func EnsureProfile(ctx context.Context, db *gorm.DB, id, email string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{ID: id, Email: email, Role: domain.RoleUser, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, id)
}

// SetProfileRole updates the stored role, or returns ErrNotFound when the
// profile does not exist.
func SetProfileRole(ctx context.Context, db *gorm.DB, id, role string) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
