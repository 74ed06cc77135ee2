// Package signature implements the HMAC-SHA256 webhook signing protocol shared by
// outbound deliveries and inbound receivers.
//
// The signed string is "{timestamp}.{rawBody}" where timestamp is epoch milliseconds.
// Signatures travel as "sha256=<hex>" in the X-Webhook-Signature header, with the
// timestamp in X-Webhook-Timestamp.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderSignature carries "sha256=<hex>"
	HeaderSignature = "X-Webhook-Signature"
	// HeaderTimestamp carries the signing time in epoch milliseconds
	HeaderTimestamp = "X-Webhook-Timestamp"

	// DefaultMaxAge is how old a signed request may be before it is rejected
	DefaultMaxAge = 5 * time.Minute
	// MaxFutureSkew is how far ahead of our clock a timestamp may be
	MaxFutureSkew = time.Minute

	prefix = "sha256="
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrExpired          = errors.New("signature expired")
	ErrFutureTimestamp  = errors.New("future timestamp")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Sign returns "sha256=" + hex(HMAC_SHA256(secret, "{timestamp}.{body}"))
func Sign(secret string, timestampMillis int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
// It does not check freshness; see CheckFreshness.
func Verify(secret string, timestampMillis int64, body []byte, signature string) bool {
	expected := Sign(secret, timestampMillis, body)
	// ConstantTimeCompare returns early only on length mismatch, which leaks nothing secret
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(signature))) == 1
}

// CheckFreshness rejects timestamps older than maxAge or more than MaxFutureSkew ahead of now
func CheckFreshness(timestampMillis int64, now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	delta := now.UnixMilli() - timestampMillis
	if delta > maxAge.Milliseconds() {
		return ErrExpired
	}
	if -delta > MaxFutureSkew.Milliseconds() {
		return ErrFutureTimestamp
	}
	return nil
}

// ParseTimestamp parses an epoch-millisecond header value
func ParseTimestamp(value string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || ts <= 0 {
		return 0, ErrInvalidTimestamp
	}
	return ts, nil
}

// SignRequest sets the signature headers on an outgoing request.
// It is a no-op when secret is empty.
func SignRequest(req *http.Request, secret string, body []byte, now time.Time) {
	if secret == "" {
		return
	}
	ts := now.UnixMilli()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Sign(secret, ts, body))
}

// Verifier checks signed inbound requests against one shared secret
type Verifier struct {
	Secret string
	MaxAge time.Duration
	Now    func() time.Time
}

// NewVerifier creates a Verifier with the default freshness window
func NewVerifier(secret string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{
		Secret: secret,
		MaxAge: maxAge,
		Now:    time.Now,
	}
}

// VerifyRequest validates the timestamp and signature header values for body
func (v *Verifier) VerifyRequest(timestampHeader, signatureHeader string, body []byte) error {
	// both headers make up the signature; either one absent means an unsigned request
	if strings.TrimSpace(signatureHeader) == "" || strings.TrimSpace(timestampHeader) == "" {
		return ErrMissingSignature
	}

	ts, err := ParseTimestamp(timestampHeader)
	if err != nil {
		return err
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	if err := CheckFreshness(ts, now, v.MaxAge); err != nil {
		return err
	}

	if !Verify(v.Secret, ts, body, signatureHeader) {
		return ErrInvalidSignature
	}
	return nil
}
