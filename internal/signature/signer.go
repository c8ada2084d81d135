// Package signature provides HMAC-SHA256 signing and verification of webhook
// payloads exchanged with partners.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// HeaderName carries the hex HMAC-SHA256 digest on partner webhooks.
const HeaderName = "X-Signature"

const (
	ReasonMissingHeader    = "Missing X-Signature header"
	ReasonInvalidSignature = "Invalid signature"
)

// Sign returns the hex HMAC-SHA256 of the canonical form of payload.
func Sign(payload any, secret string) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac(canonical, secret)), nil
}

// Verify recomputes the digest of payload and compares it with sig in
// constant time.
func Verify(payload any, sig, secret string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}

	return hmac.Equal(mac(canonical, secret), got)
}

// Verification is the result of checking a signed request.
type Verification struct {
	Valid     bool   `json:"valid"`
	Signature string `json:"signature,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// VerifyRequest extracts the signature header and verifies payload against it.
// A missing header and a mismatching digest are reported with distinct reasons.
func VerifyRequest(headers http.Header, payload any, secret string) Verification {
	sig := headers.Get(HeaderName)
	if sig == "" {
		return Verification{Valid: false, Reason: ReasonMissingHeader}
	}

	if !Verify(payload, sig, secret) {
		return Verification{Valid: false, Signature: sig, Reason: ReasonInvalidSignature}
	}

	return Verification{Valid: true, Signature: sig}
}

// GenerateSecret creates a cryptographically random partner secret:
// 32 bytes, hex encoded (64 characters).
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("signature: failed to generate random secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func mac(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)
}
