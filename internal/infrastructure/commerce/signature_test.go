package commerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureVerifier(t *testing.T) {
	payload := []byte(`{"admin_graphql_api_id":"gid://commerce/SubscriptionContract/1"}`)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(payload)
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	v := NewSignatureVerifier("shh")

	assert.True(t, v.Verify(payload, valid))
	assert.Equal(t, valid, v.Sign(payload))
	assert.False(t, v.Verify(payload, ""), "missing header")
	assert.False(t, v.Verify(payload, "not base64!"), "garbage header")
	assert.False(t, v.Verify(append(payload, ' '), valid), "tampered body")
	assert.False(t, NewSignatureVerifier("other").Verify(payload, valid), "wrong secret")
	assert.False(t, NewSignatureVerifier("").Verify(payload, valid), "empty secret")
}
