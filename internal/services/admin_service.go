// Package services – AdminService
//
// AdminService implements catalog administration: uploading a new ebook
// (PDF plus cover) and retiring one. Every operation re-reads the caller's
// role from the profiles table; role claims carried by tokens or request
// bodies are never consulted.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

// ObjectStore is the subset of the file store used by administration.
type ObjectStore interface {
	Put(ctx context.Context, objectPath string, r io.Reader) error
	Delete(ctx context.Context, objectPath string) error
}

// FileInput is one uploaded file.
type FileInput struct {
	Name string
	Body io.Reader
}

// UploadInput carries the admin upload form.
type UploadInput struct {
	Title      string
	Subject    string
	Department string
	Exam       string
	Price      int64
	PDF        FileInput
	Cover      FileInput
}

var (
	deptRE     = regexp.MustCompile(`^[A-Z0-9-]{1,32}$`)
	unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// AdminService performs privileged catalog changes.
type AdminService struct {
	DB       *gorm.DB
	Store    ObjectStore
	Accounts *AccountService
	// Catalog, when set, has its search index invalidated after changes.
	Catalog *CatalogService

	TitleLocale language.Tag
	Now         func() time.Time
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AdminService) requireAdmin(ctx context.Context, userID string) error {
	return s.Accounts.RequireAdmin(ctx, userID)
}

// Upload stores the PDF and cover under fresh timestamped paths and
// records a new active ebook. Stored files are removed again if the row
// cannot be written.
func (s *AdminService) Upload(ctx context.Context, adminID string, in UploadInput) (*domain.Ebook, error) {
	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "Upload",
		trace.WithAttributes(attribute.String("user.id", adminID)))
	defer span.End()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	caser := cases.Title(s.TitleLocale, cases.NoLower)
	title := caser.String(strings.Join(strings.Fields(in.Title), " "))
	subject := caser.String(strings.Join(strings.Fields(in.Subject), " "))
	dept := strings.ToUpper(strings.TrimSpace(in.Department))
	exam := strings.TrimSpace(in.Exam)

	switch {
	case title == "", subject == "":
		return nil, fmt.Errorf("%w: title and subject are required", ErrInvalidInput)
	case !deptRE.MatchString(dept):
		return nil, fmt.Errorf("%w: department must be 1-32 letters, digits or dashes", ErrInvalidInput)
	case in.Price < 1:
		return nil, fmt.Errorf("%w: price must be >= 1", ErrInvalidInput)
	case in.PDF.Body == nil || in.Cover.Body == nil:
		return nil, fmt.Errorf("%w: pdf and cover files are required", ErrInvalidInput)
	case !strings.EqualFold(path.Ext(in.PDF.Name), ".pdf"):
		return nil, fmt.Errorf("%w: ebook file must be a .pdf", ErrInvalidInput)
	}

	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	pdfPath := path.Join("pdfs", dept, stamp+"-"+safeFileName(in.PDF.Name))
	coverPath := path.Join("covers", dept, stamp+"-"+safeFileName(in.Cover.Name))

	if err := s.Store.Put(ctx, pdfPath, in.PDF.Body); err != nil {
		return nil, fmt.Errorf("store pdf: %w", err)
	}
	if err := s.Store.Put(ctx, coverPath, in.Cover.Body); err != nil {
		s.cleanup(ctx, pdfPath)
		return nil, fmt.Errorf("store cover: %w", err)
	}

	e := &domain.Ebook{
		Title:      title,
		Subject:    subject,
		Department: dept,
		Price:      in.Price,
		FilePath:   pdfPath,
		CoverPath:  coverPath,
		IsActive:   true,
	}
	if exam != "" {
		e.Exam = &exam
	}
	if err := repo.CreateEbook(ctx, s.DB, e); err != nil {
		s.cleanup(ctx, pdfPath, coverPath)
		return nil, err
	}
	if s.Catalog != nil {
		s.Catalog.Invalidate()
	}
	return e, nil
}

// SoftDelete retires an ebook from the catalog. Retiring an already
// inactive ebook succeeds without changes. With purge set, the stored PDF
// is deleted on a best-effort basis; buyers then lose access to the file
// but keep their purchase record.
func (s *AdminService) SoftDelete(ctx context.Context, adminID, ebookID string, purge bool) error {
	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "SoftDelete",
		trace.WithAttributes(
			attribute.String("user.id", adminID),
			attribute.String("ebook.id", ebookID),
			attribute.Bool("purge", purge),
		))
	defer span.End()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if strings.TrimSpace(ebookID) == "" {
		return ErrInvalidInput
	}

	e, err := repo.GetEbook(ctx, s.DB, ebookID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrEbookNotFound
	}
	if err != nil {
		return err
	}
	changed, err := repo.DeactivateEbook(ctx, s.DB, ebookID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrEbookNotFound
	}
	if err != nil {
		return err
	}
	if changed && s.Catalog != nil {
		s.Catalog.Invalidate()
	}
	if purge {
		s.cleanup(ctx, e.FilePath)
	}
	return nil
}

func (s *AdminService) cleanup(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := s.Store.Delete(ctx, p); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("object", p).Msg("object cleanup failed")
		}
	}
}

// safeFileName keeps the base name of an uploaded file and replaces runs of
// anything outside [A-Za-z0-9._-] with a dash.
func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		return "file"
	}
	return base
}
