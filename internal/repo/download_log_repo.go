package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// CreateDownloadLog appends one audit row for an issued download URL.
func CreateDownloadLog(ctx context.Context, db *gorm.DB, userID, ebookID string, at time.Time) (*domain.DownloadLog, error) {
	l := &domain.DownloadLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		EbookID:   ebookID,
		CreatedAt: at.UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// CountDownloadLogs returns how many URLs were issued to userID, keyed by
// ebook id. Ebooks never downloaded are absent from the map.
func CountDownloadLogs(ctx context.Context, db *gorm.DB, userID string) (map[string]int64, error) {
	var rows []struct {
		EbookID string
		N       int64
	}
	err := db.WithContext(ctx).
		Model(&domain.DownloadLog{}).
		Select("ebook_id, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("ebook_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EbookID] = r.N
	}
	return out, nil
}
