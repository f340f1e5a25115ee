package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/events"
	"github.com/tbourn/engibriefs-store/internal/payment"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/storage"
)

const testKeySecret = "rzp_test_secret"

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBook(t *testing.T, db *gorm.DB, id string, price int64, active bool) *domain.Ebook {
	t.Helper()
	e := &domain.Ebook{
		ID: id, Title: "Title " + id, Subject: "Subject", Department: "CSE",
		Price: price, FilePath: "pdfs/CSE/" + id + ".pdf", CoverPath: "covers/CSE/" + id + ".png", IsActive: active,
	}
	if err := repo.CreateEbook(context.Background(), db, e); err != nil {
		t.Fatalf("seed ebook: %v", err)
	}
	return e
}

func seedPending(t *testing.T, db *gorm.DB, userID, ebookID, orderID string, amount int64) *domain.Purchase {
	t.Helper()
	p, err := repo.CreatePendingPurchase(context.Background(), db, userID, ebookID, orderID, amount, "INR")
	if err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	return p
}

func seedProfile(t *testing.T, db *gorm.DB, id, role string) {
	t.Helper()
	if _, err := repo.EnsureProfile(context.Background(), db, id, id+"@x.io"); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := repo.SetProfileRole(context.Background(), db, id, role); err != nil {
		t.Fatalf("set role: %v", err)
	}
}

// fakeGateway hands out sequential order ids.
type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
	last  payment.OrderRequest
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Order{ID: fmt.Sprintf("order_%d", g.calls), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}, nil
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PurchasePaid
	err    error
}

func (p *recordingPublisher) PublishPurchasePaid(_ context.Context, ev events.PurchasePaid) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestStore(t *testing.T, now func() time.Time) *storage.Store {
	t.Helper()
	s, err := storage.New(storage.Options{Root: t.TempDir(), SigningKey: "sign", TTL: 60 * time.Second, Now: now})
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	return s
}

type failingSigner struct{}

func (failingSigner) SignURL(string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer down")
}

func sig(orderID, paymentID string) string {
	return payment.PaymentSignature(testKeySecret, orderID, paymentID)
}

func purchaseStatus(t *testing.T, db *gorm.DB, orderID string) string {
	t.Helper()
	p, err := repo.GetPurchaseByOrderID(context.Background(), db, orderID)
	if err != nil {
		t.Fatalf("read purchase %s: %v", orderID, err)
	}
	return p.PaymentStatus
}
