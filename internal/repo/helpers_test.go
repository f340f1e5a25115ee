package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// newRepoDB opens a file-backed SQLite database with the full schema. The
// busy timeout is set through the DSN so every pooled connection gets it.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedEbook(t *testing.T, db *gorm.DB, id, dept string, price int64, active bool) *domain.Ebook {
	t.Helper()
	e := &domain.Ebook{
		ID:         id,
		Title:      "Book " + id,
		Subject:    "Subject " + id,
		Department: dept,
		Price:      price,
		FilePath:   "pdfs/" + dept + "/" + id + ".pdf",
		CoverPath:  "covers/" + dept + "/" + id + ".png",
		IsActive:   active,
	}
	if err := CreateEbook(context.Background(), db, e); err != nil {
		t.Fatalf("seed ebook %s: %v", id, err)
	}
	return e
}
