// Package webhook verifies and decodes inbound meeting-recording events.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// DefaultSignatureHeader is the header carrying the hex HMAC of the raw body
const DefaultSignatureHeader = "X-Fathom-Signature"

var (
	// ErrMissingSignature is returned when the request carries no signature header
	ErrMissingSignature = errors.New("missing signature")

	// ErrMissingSecret is returned when no shared secret is configured
	ErrMissingSecret = errors.New("webhook secret not configured")

	// ErrMalformedSignature is returned when the header is not a hex SHA-256 digest
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrSignatureMismatch is returned when the digest does not match the body
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// CheckSignature validates signatureHeader against the HMAC-SHA256 of payload keyed by secret.
// It returns nil on success and one of the classified errors above otherwise.
func CheckSignature(payload []byte, signatureHeader, secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}

	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}
	if len(sig) > len("sha256=") && strings.EqualFold(sig[:len("sha256=")], "sha256=") {
		sig = sig[len("sha256="):]
	}

	provided, err := hex.DecodeString(sig)
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if len(provided) != len(expected) {
		return ErrMalformedSignature
	}

	if !hmac.Equal(provided, expected) {
		return ErrSignatureMismatch
	}

	return nil
}

// VerifySignature reports whether signatureHeader authenticates payload under secret.
// It fails closed and never panics.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	return CheckSignature(payload, signatureHeader, secret) == nil
}

// Sign returns the hex HMAC-SHA256 of payload, the value a sender puts in the signature header.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
