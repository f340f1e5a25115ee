// Package services – CatalogService
//
// CatalogService serves the public catalog: filtered, paginated listings,
// single-item lookups and free-text search. Only active ebooks are ever
// returned. Search runs over an immutable in-memory index that is rebuilt
// lazily after any catalog mutation.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/search"
)

// CatalogService provides read access to listed ebooks.
type CatalogService struct {
	DB *gorm.DB

	// MaxPageSize caps page sizes requested by clients.
	MaxPageSize int

	mu    sync.RWMutex
	index search.Index
}

// NewCatalogService returns a CatalogService with default limits.
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db, MaxPageSize: 100}
}

// ListPage returns one page of listed ebooks and the total matching f.
func (s *CatalogService) ListPage(ctx context.Context, f repo.EbookFilter, page, pageSize int) ([]domain.Ebook, int64, error) {
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("filter.department", f.Department),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if s.MaxPageSize > 0 && pageSize > s.MaxPageSize {
		pageSize = s.MaxPageSize
	}

	total, err := repo.CountActiveEbooks(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Ebook{}, 0, nil
	}
	items, err := repo.ListActiveEbooksPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Get returns a listed ebook.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Ebook, error) {
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("ebook.id", id)))
	defer span.End()

	e, err := repo.GetActiveEbook(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEbookNotFound
	}
	return e, err
}

// Stats returns the count and last modification time of listings matching
// f, for conditional responses.
func (s *CatalogService) Stats(ctx context.Context, f repo.EbookFilter) (int64, *time.Time, error) {
	return repo.EbooksStats(ctx, s.DB, f)
}

// Search ranks listed ebooks against q and returns up to limit of them,
// best match first.
func (s *CatalogService) Search(ctx context.Context, q string, limit int) ([]domain.Ebook, error) {
	ctx, span := otel.Tracer("services/CatalogService").Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("limit", limit)))
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}
	idx, err := s.currentIndex(ctx)
	if err != nil {
		return nil, err
	}
	hits := idx.TopK(q, limit)
	if len(hits) == 0 {
		return []domain.Ebook{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	found, err := repo.GetActiveEbooksByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Ebook, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]domain.Ebook, 0, len(found))
	for _, id := range ids {
		// Rows deactivated since the index was built are dropped here.
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Invalidate drops the search index; the next search rebuilds it.
func (s *CatalogService) Invalidate() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

func (s *CatalogService) currentIndex(ctx context.Context) (search.Index, error) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	books, err := repo.ListActiveEbooks(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}
	docs := make([]search.Document, 0, len(books))
	for _, b := range books {
		fields := []string{b.Title, b.Subject, b.Department}
		if b.Exam != nil {
			fields = append(fields, *b.Exam)
		}
		docs = append(docs, search.Document{ID: b.ID, Fields: fields})
	}
	s.index = search.NewIndex(docs, search.WithStopwords(search.DefaultStopwords))
	return s.index, nil
}
