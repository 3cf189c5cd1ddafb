package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// generateSecret returns a new random 32-byte HMAC secret, hex-encoded.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("webhook: generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sign computes the hex HMAC-SHA256 signature of body using secret, as
// sent in the X-Webhook-Signature header.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC-SHA256 signature of body with
// secret and compares it to sig in constant time. This is the contract
// consumers use to authenticate deliveries, and what the
// subscription-test operation exercises end-to-end.
func VerifySignature(body []byte, secret, sig string) bool {
	want := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}
