package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/engibriefs-store/internal/auth"
	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/http/middleware"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/services"
)

// ---------- auth ----------

// bearerAsUser treats the raw bearer token as the user id.
type bearerAsUser struct{}

func (bearerAsUser) Verify(raw string) (auth.Identity, error) {
	if raw == "bad" {
		return auth.Identity{}, errors.New("bad token")
	}
	return auth.Identity{UserID: raw, Email: raw + "@example.com"}, nil
}

// ---------- service stubs ----------

type stubCatalog struct {
	listPage func(context.Context, repo.EbookFilter, int, int) ([]domain.Ebook, int64, error)
	get      func(context.Context, string) (*domain.Ebook, error)
	stats    func(context.Context, repo.EbookFilter) (int64, *time.Time, error)
	search   func(context.Context, string, int) ([]domain.Ebook, error)
}

func (s stubCatalog) ListPage(ctx context.Context, f repo.EbookFilter, p, ps int) ([]domain.Ebook, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, f, p, ps)
	}
	return nil, 0, nil
}

func (s stubCatalog) Get(ctx context.Context, id string) (*domain.Ebook, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, services.ErrEbookNotFound
}

func (s stubCatalog) Stats(ctx context.Context, f repo.EbookFilter) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, f)
	}
	return 0, nil, nil
}

func (s stubCatalog) Search(ctx context.Context, q string, limit int) ([]domain.Ebook, error) {
	if s.search != nil {
		return s.search(ctx, q, limit)
	}
	return nil, nil
}

type stubAccounts struct {
	me        func(context.Context, string, string) (*domain.Profile, error)
	purchases func(context.Context, string) ([]domain.Purchase, error)
	stats     func(context.Context, string) (int64, *time.Time, error)
	downloads func(context.Context, string) (map[string]int64, error)
}

func (s stubAccounts) Me(ctx context.Context, uid, email string) (*domain.Profile, error) {
	if s.me != nil {
		return s.me(ctx, uid, email)
	}
	return &domain.Profile{ID: uid, Email: email, Role: domain.RoleUser}, nil
}

func (s stubAccounts) Purchases(ctx context.Context, uid string) ([]domain.Purchase, error) {
	if s.purchases != nil {
		return s.purchases(ctx, uid)
	}
	return nil, nil
}

func (s stubAccounts) DownloadCounts(ctx context.Context, uid string) (map[string]int64, error) {
	if s.downloads != nil {
		return s.downloads(ctx, uid)
	}
	return nil, nil
}

func (s stubAccounts) PurchasesStats(ctx context.Context, uid string) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, uid)
	}
	return 0, nil, nil
}

type stubOrders struct {
	create func(context.Context, string, services.OrderInput) (*payment.Order, error)
	calls  int
}

func (s *stubOrders) Create(ctx context.Context, uid string, in services.OrderInput) (*payment.Order, error) {
	s.calls++
	if s.create != nil {
		return s.create(ctx, uid, in)
	}
	return &payment.Order{ID: "order_1", Amount: in.Amount, Currency: "INR"}, nil
}

type stubPayments struct {
	verify  func(context.Context, string, services.VerifyInput) (*services.VerifyResult, error)
	webhook func(context.Context, []byte, string) (*services.WebhookResult, error)
}

func (s stubPayments) Verify(ctx context.Context, uid string, in services.VerifyInput) (*services.VerifyResult, error) {
	if s.verify != nil {
		return s.verify(ctx, uid, in)
	}
	return &services.VerifyResult{Purchase: &domain.Purchase{OrderID: in.OrderID}}, nil
}

func (s stubPayments) HandleWebhook(ctx context.Context, body []byte, sig string) (*services.WebhookResult, error) {
	if s.webhook != nil {
		return s.webhook(ctx, body, sig)
	}
	return &services.WebhookResult{}, nil
}

type stubEntitlements struct {
	issue func(context.Context, string, string) (*services.Download, error)
}

func (s stubEntitlements) IssueDownload(ctx context.Context, uid, ebookID string) (*services.Download, error) {
	if s.issue != nil {
		return s.issue(ctx, uid, ebookID)
	}
	return nil, services.ErrNotPurchased
}

type stubCheckout struct {
	complete func(context.Context, string, services.VerifyInput) (*services.CheckoutResult, error)
}

func (s stubCheckout) Complete(ctx context.Context, uid string, in services.VerifyInput) (*services.CheckoutResult, error) {
	if s.complete != nil {
		return s.complete(ctx, uid, in)
	}
	return nil, services.ErrOrderNotFound
}

type stubAdmin struct {
	upload     func(context.Context, string, services.UploadInput) (*domain.Ebook, error)
	softDelete func(context.Context, string, string, bool) error
}

func (s stubAdmin) Upload(ctx context.Context, uid string, in services.UploadInput) (*domain.Ebook, error) {
	if s.upload != nil {
		return s.upload(ctx, uid, in)
	}
	return &domain.Ebook{ID: "e1", Title: in.Title}, nil
}

func (s stubAdmin) SoftDelete(ctx context.Context, uid, id string, purge bool) error {
	if s.softDelete != nil {
		return s.softDelete(ctx, uid, id, purge)
	}
	return nil
}

type stubBlog struct {
	listPublished func(context.Context, int, int) ([]domain.BlogPost, int64, error)
	read          func(context.Context, string) (*domain.BlogPost, error)
	comments      func(context.Context, string) ([]domain.BlogComment, error)
	addComment    func(context.Context, string, string, string, string) (*domain.BlogComment, error)
	listAll       func(context.Context, string) ([]domain.BlogPost, error)
	create        func(context.Context, string, string, services.BlogPostInput) (*domain.BlogPost, error)
	update        func(context.Context, string, string, services.BlogPostInput) (*domain.BlogPost, error)
	setStatus     func(context.Context, string, string, string) (*domain.BlogPost, error)
	del           func(context.Context, string, string) error
	delComment    func(context.Context, string, string) error
}

func (s stubBlog) ListPublished(ctx context.Context, page, size int) ([]domain.BlogPost, int64, error) {
	if s.listPublished != nil {
		return s.listPublished(ctx, page, size)
	}
	return []domain.BlogPost{}, 0, nil
}

func (s stubBlog) Read(ctx context.Context, slug string) (*domain.BlogPost, error) {
	if s.read != nil {
		return s.read(ctx, slug)
	}
	return nil, services.ErrBlogNotFound
}

func (s stubBlog) Comments(ctx context.Context, slug string) ([]domain.BlogComment, error) {
	if s.comments != nil {
		return s.comments(ctx, slug)
	}
	return []domain.BlogComment{}, nil
}

func (s stubBlog) AddComment(ctx context.Context, uid, name, slug, body string) (*domain.BlogComment, error) {
	if s.addComment != nil {
		return s.addComment(ctx, uid, name, slug, body)
	}
	return &domain.BlogComment{ID: "c1", UserID: uid, AuthorName: name, Body: body}, nil
}

func (s stubBlog) ListAll(ctx context.Context, uid string) ([]domain.BlogPost, error) {
	if s.listAll != nil {
		return s.listAll(ctx, uid)
	}
	return []domain.BlogPost{}, nil
}

func (s stubBlog) Get(_ context.Context, _, id string) (*domain.BlogPost, error) {
	return &domain.BlogPost{ID: id}, nil
}

func (s stubBlog) Create(ctx context.Context, uid, name string, in services.BlogPostInput) (*domain.BlogPost, error) {
	if s.create != nil {
		return s.create(ctx, uid, name, in)
	}
	return &domain.BlogPost{ID: "b1", Title: in.Title, AuthorID: uid, AuthorName: name}, nil
}

func (s stubBlog) Update(ctx context.Context, uid, id string, in services.BlogPostInput) (*domain.BlogPost, error) {
	if s.update != nil {
		return s.update(ctx, uid, id, in)
	}
	return &domain.BlogPost{ID: id, Title: in.Title}, nil
}

func (s stubBlog) SetStatus(ctx context.Context, uid, id, status string) (*domain.BlogPost, error) {
	if s.setStatus != nil {
		return s.setStatus(ctx, uid, id, status)
	}
	return &domain.BlogPost{ID: id, Status: status}, nil
}

func (s stubBlog) Delete(ctx context.Context, uid, id string) error {
	if s.del != nil {
		return s.del(ctx, uid, id)
	}
	return nil
}

func (s stubBlog) DeleteComment(ctx context.Context, uid, id string) error {
	if s.delComment != nil {
		return s.delComment(ctx, uid, id)
	}
	return nil
}

type rememberCall struct {
	UserID, Scope, Key, Hash, ResourceID string
	Status                               int
	Payload                              []byte
}

type stubIdem struct {
	calls []rememberCall
	err   error
}

func (s *stubIdem) Remember(_ context.Context, uid, scope, key, hash, resourceID string, status int, payload []byte) error {
	s.calls = append(s.calls, rememberCall{uid, scope, key, hash, resourceID, status, payload})
	return s.err
}

type stubFiles struct {
	verify  func(token, objectPath string) error
	resolve func(objectPath string) (string, error)
}

func (s stubFiles) VerifyToken(token, objectPath string) error {
	if s.verify != nil {
		return s.verify(token, objectPath)
	}
	return nil
}

func (s stubFiles) Resolve(objectPath string) (string, error) {
	if s.resolve != nil {
		return s.resolve(objectPath)
	}
	return "", errors.New("missing")
}

// ---------- helpers ----------

func init() { gin.SetMode(gin.TestMode) }

// authed returns a router whose routes require a bearer token.
func authed() (*gin.Engine, *gin.RouterGroup) {
	r := gin.New()
	r.Use(middleware.RequestID())
	return r, r.Group("/", middleware.Authenticate(bearerAsUser{}))
}

func doJSON(t *testing.T, r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}
