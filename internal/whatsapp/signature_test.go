package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	secret := "app-secret"

	t.Run("Valid", func(t *testing.T) {
		assert.True(t, VerifySignature(body, sign(body, secret), secret))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		assert.False(t, VerifySignature(body, sign(body, "other"), secret))
	})

	t.Run("TamperedBody", func(t *testing.T) {
		header := sign(body, secret)
		assert.False(t, VerifySignature([]byte(`{"object":"x"}`), header, secret))
	})

	t.Run("MissingPrefix", func(t *testing.T) {
		header := sign(body, secret)
		assert.False(t, VerifySignature(body, header[len(signaturePrefix):], secret))
	})

	t.Run("NotHex", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "sha256=zzzz", secret))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "", secret))
	})
}
