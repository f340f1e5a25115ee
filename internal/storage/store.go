// Package storage is the file store behind ebook PDFs and cover images.
//
// Objects live under a root directory and are addressed by slash-separated
// object paths such as "pdfs/CSE/1700000000000-notes.pdf". Uploads always
// write fresh paths and never overwrite, so readers and writers never
// contend. Read access for buyers goes through signed URLs: a short-lived
// HS256 token bound to exactly one object path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidPath is returned for empty, absolute or escaping object paths.
	ErrInvalidPath = errors.New("invalid object path")
	// ErrExists is returned when a Put targets an existing object.
	ErrExists = errors.New("object already exists")
	// ErrNotFound is returned for missing objects.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidToken is returned when a signed URL token is forged,
	// expired or bound to another object.
	ErrInvalidToken = errors.New("invalid or expired download token")
)

const tokenAudience = "download"

// Store is a local-disk object store with signed read URLs.
type Store struct {
	root    string
	key     []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// Options configures New.
type Options struct {
	Root       string
	SigningKey string
	// BaseURL is prepended to /files/<path>; empty yields a relative URL.
	BaseURL string
	TTL     time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// New creates the root directory if needed and returns a Store.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("storage root must not be empty")
	}
	if opts.SigningKey == "" {
		return nil, errors.New("storage signing key must not be empty")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("signed url ttl must be > 0")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		root:    opts.Root,
		key:     []byte(opts.SigningKey),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		ttl:     opts.TTL,
		now:     now,
	}, nil
}

// TTL returns the validity window of signed URLs.
func (s *Store) TTL() time.Duration { return s.ttl }

// CleanPath normalizes an object path and rejects anything that could
// resolve outside the store root.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	c := path.Clean(p)
	if c == "." || c == "" {
		return "", ErrInvalidPath
	}
	return c, nil
}

func (s *Store) full(objectPath string) (string, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(p)), nil
}

// Put writes r to a new object. Existing objects are never overwritten.
func (s *Store) Put(ctx context.Context, objectPath string, r io.Reader) error {
	full, err := s.full(objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return err
	}
	return f.Close()
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(_ context.Context, objectPath string) error {
	full, err := s.full(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Resolve returns the on-disk location of an existing object.
func (s *Store) Resolve(objectPath string) (string, error) {
	full, err := s.full(objectPath)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		return "", ErrNotFound
	}
	return full, nil
}

type objectClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// SignURL returns a URL granting read access to one object until expiresAt.
func (s *Store) SignURL(objectPath string) (signed string, expiresAt time.Time, err error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	expiresAt = now.Add(s.ttl).Truncate(time.Second)
	claims := objectClaims{
		Path: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/files/" + escapePath(p) + "?token=" + url.QueryEscape(tok), expiresAt, nil
}

// VerifyToken checks that token is a live grant for objectPath.
func (s *Store) VerifyToken(token, objectPath string) error {
	p, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	var claims objectClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err = parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Path != p {
		return ErrInvalidToken
	}
	return nil
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
