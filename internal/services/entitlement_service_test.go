package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/engibriefs-store/internal/repo"
)

func TestEntitlementService_IssueDownload(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := newTestStore(t, func() time.Time { return now })
	svc := &EntitlementService{DB: db, Signer: store, Now: func() time.Time { return now }}
	pay := &PaymentService{DB: db, KeySecret: testKeySecret}

	e := seedBook(t, db, "e1", 99, true)
	seedPending(t, db, "u1", "e1", "order_A", 9900)

	if _, err := svc.IssueDownload(ctx, "u1", "e1"); !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("pending purchase: want ErrNotPurchased, got %v", err)
	}
	if _, err := svc.IssueDownload(ctx, "u2", "e1"); !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("no purchase: want ErrNotPurchased, got %v", err)
	}

	if _, err := pay.Verify(ctx, "u1", VerifyInput{OrderID: "order_A", PaymentID: "pay_1", Signature: sig("order_A", "pay_1")}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	d, err := svc.IssueDownload(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("IssueDownload: %v", err)
	}
	if !d.ExpiresAt.Equal(now.Add(60 * time.Second)) {
		t.Fatalf("unexpected expiry %v", d.ExpiresAt)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasSuffix(u.Path, e.FilePath) {
		t.Fatalf("url %q does not point at %q", d.URL, e.FilePath)
	}
	if err := store.VerifyToken(u.Query().Get("token"), e.FilePath); err != nil {
		t.Fatalf("token should verify: %v", err)
	}

	counts, err := repo.CountDownloadLogs(ctx, db, "u1")
	if err != nil || counts["e1"] != 1 {
		t.Fatalf("want 1 download log, got %v err=%v", counts, err)
	}
}

func TestEntitlementService_SoftDeletedStillDownloadable(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &EntitlementService{DB: db, Signer: newTestStore(t, time.Now)}
	seedBook(t, db, "e1", 99, true)
	seedPending(t, db, "u1", "e1", "order_A", 9900)
	if _, err := repo.MarkPurchasePaid(ctx, db, "order_A", "pay_1", time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := repo.DeactivateEbook(ctx, db, "e1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := svc.IssueDownload(ctx, "u1", "e1"); err != nil {
		t.Fatalf("buyer must keep access after soft delete: %v", err)
	}
}

func TestEntitlementService_Errors(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &EntitlementService{DB: db, Signer: failingSigner{}}
	seedBook(t, db, "e1", 99, true)
	seedPending(t, db, "u1", "e1", "order_A", 9900)
	if _, err := repo.MarkPurchasePaid(ctx, db, "order_A", "pay_1", time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := svc.IssueDownload(ctx, "", "e1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.IssueDownload(ctx, "u1", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if _, err := svc.IssueDownload(ctx, "u1", "e1"); err == nil {
		t.Fatal("signer failure should surface")
	}
}

func TestCheckoutService_Complete(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	pay := &PaymentService{DB: db, KeySecret: testKeySecret}
	svc := &CheckoutService{
		Payments:     pay,
		Entitlements: &EntitlementService{DB: db, Signer: newTestStore(t, time.Now)},
	}
	seedBook(t, db, "e1", 99, true)
	seedPending(t, db, "u1", "e1", "order_A", 9900)

	bad := VerifyInput{OrderID: "order_A", PaymentID: "pay_1", Signature: "00"}
	if _, err := svc.Complete(ctx, "u1", bad); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("want ErrSignatureMismatch, got %v", err)
	}

	in := VerifyInput{OrderID: "order_A", PaymentID: "pay_1", Signature: sig("order_A", "pay_1")}
	res, err := svc.Complete(ctx, "u1", in)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Download == nil || res.Download.URL == "" || res.Download.EbookID != "e1" {
		t.Fatalf("expected a download url: %+v", res.Download)
	}

	res, err = svc.Complete(ctx, "u1", in)
	if err != nil || !res.Verify.AlreadyProcessed || res.Download.URL == "" {
		t.Fatalf("replayed complete should still return a url: %+v err=%v", res, err)
	}
}
