package commerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Webhook delivery headers
const (
	SignatureHeader  = "X-Commerce-Hmac-Sha256"
	DeliveryIDHeader = "X-Commerce-Webhook-Id"
	TopicHeader      = "X-Commerce-Topic"
)

// SignatureVerifier authenticates webhook deliveries with a shared secret
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier for the given secret
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(strings.TrimSpace(secret))}
}

// Verify checks a base64 HMAC-SHA256 of the raw body. An empty secret or header never verifies.
func (v *SignatureVerifier) Verify(payload []byte, signatureHeader string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || len(v.secret) == 0 {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(v.sign(payload), decoded)
}

// Sign returns the header value for a payload
func (v *SignatureVerifier) Sign(payload []byte) string {
	return base64.StdEncoding.EncodeToString(v.sign(payload))
}

func (v *SignatureVerifier) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
