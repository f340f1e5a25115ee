package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
)

func TestAccountService_MeAndRole(t *testing.T) {
	db := newServiceDB(t)
	s := &AccountService{DB: db}
	ctx := context.Background()

	p, err := s.Me(ctx, "u1", "u1@x.io")
	if err != nil || p.Role != domain.RoleUser {
		t.Fatalf("Me: %+v err=%v", p, err)
	}
	if ok, err := s.IsAdmin(ctx, "u1"); err != nil || ok {
		t.Fatalf("new profile must not be admin: %v %v", ok, err)
	}

	if err := repo.SetProfileRole(ctx, db, "u1", domain.RoleAdmin); err != nil {
		t.Fatalf("SetProfileRole: %v", err)
	}
	p, err = s.Me(ctx, "u1", "u1@x.io")
	if err != nil || !p.IsAdmin() {
		t.Fatalf("Me must not reset an existing role: %+v err=%v", p, err)
	}

	if ok, err := s.IsAdmin(ctx, "ghost"); err != nil || ok {
		t.Fatalf("unknown users are not admins: %v %v", ok, err)
	}
	if _, err := s.IsAdmin(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
	if _, err := s.Me(ctx, "", ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestAccountService_PurchasesIncludeRetiredEbooks(t *testing.T) {
	db := newServiceDB(t)
	s := &AccountService{DB: db}
	ctx := context.Background()
	seedBook(t, db, "e1", 99, true)
	seedBook(t, db, "e2", 49, true)
	seedPending(t, db, "u1", "e1", "order_A", 9900)
	seedPending(t, db, "u1", "e2", "order_B", 4900)
	if _, err := repo.MarkPurchasePaid(ctx, db, "order_A", "pay_1", time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := repo.DeactivateEbook(ctx, db, "e1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := s.Purchases(ctx, "u1")
	if err != nil {
		t.Fatalf("Purchases: %v", err)
	}
	if len(got) != 1 || got[0].EbookID != "e1" || got[0].Ebook.ID != "e1" || got[0].Ebook.IsActive {
		t.Fatalf("want the paid, retired ebook only: %+v", got)
	}

	n, last, err := s.PurchasesStats(ctx, "u1")
	if err != nil || n != 1 || last == nil {
		t.Fatalf("PurchasesStats: n=%d last=%v err=%v", n, last, err)
	}
}

func TestAccountService_SetRole(t *testing.T) {
	db := newServiceDB(t)
	s := &AccountService{DB: db}
	ctx := context.Background()

	// Unknown identities get a profile on the way.
	p, err := s.SetRole(ctx, " ops-1 ", "ops@x.io", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if p.ID != "ops-1" || p.Email != "ops@x.io" || !p.IsAdmin() {
		t.Fatalf("profile=%+v", p)
	}
	if ok, _ := s.IsAdmin(ctx, "ops-1"); !ok {
		t.Fatal("granted role must be visible to IsAdmin")
	}

	if p, err = s.SetRole(ctx, "ops-1", "", domain.RoleUser); err != nil || p.IsAdmin() {
		t.Fatalf("revoke: %+v err=%v", p, err)
	}

	if _, err := s.SetRole(ctx, "ops-1", "", "owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown role: want ErrInvalidInput, got %v", err)
	}
	if _, err := s.SetRole(ctx, "  ", "", domain.RoleAdmin); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank id: want ErrInvalidInput, got %v", err)
	}
}

func TestAccountService_DownloadCounts(t *testing.T) {
	db := newServiceDB(t)
	s := &AccountService{DB: db}
	ctx := context.Background()
	seedBook(t, db, "e1", 99, true)
	for i := 0; i < 2; i++ {
		if _, err := repo.CreateDownloadLog(ctx, db, "u1", "e1", time.Now()); err != nil {
			t.Fatalf("CreateDownloadLog: %v", err)
		}
	}

	got, err := s.DownloadCounts(ctx, "u1")
	if err != nil || got["e1"] != 2 {
		t.Fatalf("DownloadCounts: %v err=%v", got, err)
	}
}
