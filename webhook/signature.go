package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// AuthError is returned when an inbound webhook fails signature checks.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Sign returns hex(sha256(secret || body)).
func Sign(secret string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify compares signature against Sign(secret, body) in constant time.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected))
}

// InboundPolicy is the per-source signature policy for received webhooks.
type InboundPolicy struct {
	Secret           string
	RequireSignature bool
}

// Check applies the policy. A present signature is only verified when a
// secret is configured; a missing one is rejected only when required.
func (p InboundPolicy) Check(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		if p.RequireSignature {
			return &AuthError{Status: http.StatusUnauthorized, Message: "Invalid signature"}
		}
		return nil
	}
	if p.Secret == "" {
		if p.RequireSignature {
			return &AuthError{Status: http.StatusUnauthorized, Message: "Invalid signature"}
		}
		return nil
	}
	if !Verify(p.Secret, body, signature) {
		return &AuthError{Status: http.StatusUnauthorized, Message: "Invalid signature"}
	}
	return nil
}
