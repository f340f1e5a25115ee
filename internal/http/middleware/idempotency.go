// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for unsafe requests. The
// validator checks the header, stashes the key together with a fingerprint
// of the request body, and asks a lookup whether the same (user, route, key)
// already completed. A stored response found by the lookup is attached to
// the context so the handler can replay it verbatim instead of repeating
// side effects such as opening a second gateway order. A key reused with a
// different body is rejected with 422.
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed marks responses served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemHash   = "idem.hash"   // hex SHA-256 of the request body
	ctxKeyIdemReplay = "idem.replay" // *StoredResponse
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// fingerprintLimit caps how much of the body is hashed.
const fingerprintLimit = 1 << 20

// StoredResponse is a previously completed response for an idempotency key.
// RequestHash is the fingerprint of the request that produced it; empty
// skips the comparison.
type StoredResponse struct {
	Status      int
	Body        []byte
	RequestHash string
}

// IdempotencyLookup returns the stored response for (userID, scope, key) if
// one is still valid at now, or nil. Lookup errors do not block the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (*StoredResponse, error)

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequestFingerprint returns the body fingerprint computed by
// IdempotencyValidator, or "" when the request carried no key.
func RequestFingerprint(c *gin.Context) string {
	return c.GetString(ctxKeyIdemHash)
}

// Replay returns the stored response for this request, if any.
func Replay(c *gin.Context) (*StoredResponse, bool) {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return nil, false
	}
	r, ok := v.(*StoredResponse)
	return r, ok && r != nil
}

// IsReplay reports whether a stored response exists for this request.
func IsReplay(c *gin.Context) bool {
	_, ok := Replay(c)
	return ok
}

// IdempotencyScope names the operation an idempotency key applies to:
// the method plus the registered route.
func IdempotencyScope(c *gin.Context) string {
	p := c.FullPath()
	if p == "" {
		p = c.Request.URL.Path
	}
	return c.Request.Method + " " + p
}

// IdempotencyValidator validates the Idempotency-Key header when present and
// looks up a stored response for it. Requests without the header pass
// through untouched. Invalid keys are rejected with 400. A hit whose body
// fingerprint differs from the stored one is rejected with 422; a matching
// hit also marks the request to bypass rate limiting.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		hash, err := fingerprintBody(c.Request)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, "bad_request", "unreadable request body")
			return
		}
		c.Set(ctxKeyIdemHash, hash)

		if lookup != nil {
			if uid := UserID(c); uid != "" {
				rec, err := lookup(c.Request.Context(), uid, IdempotencyScope(c), key, time.Now().UTC())
				if err != nil {
					LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
				} else if rec != nil {
					if rec.RequestHash != "" && rec.RequestHash != hash {
						abortJSON(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
							"Idempotency-Key was already used with a different request body")
						return
					}
					c.Set(ctxKeyIdemReplay, rec)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// fingerprintBody hashes up to fingerprintLimit bytes of the body and puts
// them back in front of whatever was not read.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, fingerprintLimit))
	if err != nil {
		return "", err
	}
	r.Body = readCloser{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
