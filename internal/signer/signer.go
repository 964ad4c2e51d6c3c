package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadSignature is returned for malformed tokens and for any token
// whose signature does not match bit for bit. Handlers map it to a 400.
var ErrBadSignature = errors.New("signer: bad signature")

// redirectSalt domain-separates redirect tokens from any other signing
// use of the same secret, so tokens minted elsewhere cannot be replayed
// against the redirect endpoints.
const redirectSalt = "safe-redirect"

// Signer signs and verifies opaque payloads with a process-wide secret.
// The payload stays visible to any holder of the token; only its
// integrity is protected.
type Signer struct {
	key []byte
	now func() time.Time
}

// New derives the signing key from the shared secret and the fixed
// redirect salt.
func New(secret string) *Signer {
	h := sha256.New()
	h.Write([]byte(redirectSalt + ":signer:"))
	h.Write([]byte(secret))
	return &Signer{key: h.Sum(nil), now: time.Now}
}

// Sign returns "payload:timestamp:signature". The embedded issue
// timestamp lets Verify enforce a maximum token age when asked to.
func (s *Signer) Sign(payload string) string {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	value := payload + ":" + ts
	return value + ":" + s.signature(value)
}

// Verify checks a token's signature and returns the original payload.
// It never enforces expiry; use VerifyMaxAge for that.
func (s *Signer) Verify(token string) (string, error) {
	return s.VerifyMaxAge(token, 0)
}

// VerifyMaxAge verifies the token and, when maxAge > 0, rejects tokens
// older than maxAge. Payloads may contain ":" so the token is split from
// the right.
func (s *Signer) VerifyMaxAge(token string, maxAge time.Duration) (string, error) {
	i := strings.LastIndex(token, ":")
	if i < 0 {
		return "", ErrBadSignature
	}
	value, sig := token[:i], token[i+1:]

	if !hmac.Equal([]byte(s.signature(value)), []byte(sig)) {
		return "", ErrBadSignature
	}

	j := strings.LastIndex(value, ":")
	if j < 0 {
		return "", ErrBadSignature
	}
	payload, tsStr := value[:j], value[j+1:]

	issued, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if maxAge > 0 && s.now().Sub(time.Unix(issued, 0)) > maxAge {
		return "", ErrBadSignature
	}
	return payload, nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
