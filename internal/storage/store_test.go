package storage

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestStore(t *testing.T, c *clock) *Store {
	t.Helper()
	s, err := New(Options{Root: t.TempDir(), SigningKey: "k", BaseURL: "https://cdn.test/", TTL: 60 * time.Second, Now: c.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func tokenOf(t *testing.T, signed string) (string, string) {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return strings.TrimPrefix(u.Path, "/files/"), u.Query().Get("token")
}

func TestNew_Validation(t *testing.T) {
	cases := []Options{
		{Root: "", SigningKey: "k", TTL: time.Second},
		{Root: t.TempDir(), SigningKey: "", TTL: time.Second},
		{Root: t.TempDir(), SigningKey: "k", TTL: 0},
	}
	for i, o := range cases {
		if _, err := New(o); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestCleanPath(t *testing.T) {
	ok := map[string]string{
		"pdfs/CSE/a.pdf":    "pdfs/CSE/a.pdf",
		"pdfs//CSE/./a.pdf": "pdfs/CSE/a.pdf",
		`covers\ECE\b.png`:  "covers/ECE/b.png",
		" pdfs/x.pdf ":      "pdfs/x.pdf",
	}
	for in, want := range ok {
		got, err := CleanPath(in)
		if err != nil || got != want {
			t.Fatalf("CleanPath(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "/etc/passwd", "../x", "pdfs/../../x", ".", "a/.."} {
		if _, err := CleanPath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("CleanPath(%q): expected ErrInvalidPath, got %v", bad, err)
		}
	}
}

func TestPut_NeverOverwrites_AndDelete(t *testing.T) {
	c := &clock{t: time.Now()}
	s := newTestStore(t, c)
	ctx := context.Background()

	if err := s.Put(ctx, "pdfs/CSE/1-a.pdf", bytes.NewBufferString("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "pdfs/CSE/1-a.pdf", bytes.NewBufferString("v2")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	full, err := s.Resolve("pdfs/CSE/1-a.pdf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b, _ := os.ReadFile(full); string(b) != "v1" {
		t.Fatalf("content overwritten: %q", b)
	}

	if err := s.Delete(ctx, "pdfs/CSE/1-a.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "pdfs/CSE/1-a.pdf"); err != nil {
		t.Fatalf("Delete missing should be nil, got %v", err)
	}
	if _, err := s.Resolve("pdfs/CSE/1-a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "../escape", bytes.NewBufferString("x")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSignURL_ShapeAndScope(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := newTestStore(t, c)

	signed, exp, err := s.SignURL("pdfs/CSE/1 notes.pdf")
	if err != nil {
		t.Fatalf("SignURL: %v", err)
	}
	if !strings.HasPrefix(signed, "https://cdn.test/files/pdfs/CSE/1%20notes.pdf?token=") {
		t.Fatalf("unexpected url: %s", signed)
	}
	if !exp.Equal(c.t.Add(60 * time.Second)) {
		t.Fatalf("expiresAt = %v", exp)
	}

	p, tok := tokenOf(t, signed)
	if p != "pdfs/CSE/1 notes.pdf" {
		t.Fatalf("decoded path = %q", p)
	}
	if err := s.VerifyToken(tok, p); err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if err := s.VerifyToken(tok, "pdfs/CSE/other.pdf"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token must be scoped to one object, got %v", err)
	}
	if err := s.VerifyToken(tok+"x", p); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token must fail, got %v", err)
	}

	other, _ := New(Options{Root: t.TempDir(), SigningKey: "other", TTL: time.Minute, Now: c.Now})
	if err := other.VerifyToken(tok, p); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token under another key must fail, got %v", err)
	}
}

func TestSignURL_ExpiresAtWindowEdge(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &clock{t: issued}
	s := newTestStore(t, c)

	signed, _, err := s.SignURL("pdfs/ME/2-b.pdf")
	if err != nil {
		t.Fatalf("SignURL: %v", err)
	}
	p, tok := tokenOf(t, signed)

	cases := []struct {
		at    time.Duration
		valid bool
	}{
		{0, true},
		{30 * time.Second, true},
		{59 * time.Second, true},
		{60 * time.Second, false},
		{61 * time.Second, false},
		{time.Hour, false},
	}
	for _, tc := range cases {
		c.t = issued.Add(tc.at)
		err := s.VerifyToken(tok, p)
		if tc.valid && err != nil {
			t.Fatalf("at +%v: expected valid, got %v", tc.at, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("at +%v: expected ErrInvalidToken, got %v", tc.at, err)
		}
	}
}
