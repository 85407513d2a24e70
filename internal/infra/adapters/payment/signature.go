package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"strings"
)

func hmacSum(h func() hash.Hash, secret string, parts ...[]byte) []byte {
	m := hmac.New(h, []byte(secret))
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

// VerifyPaystackSignature checks x-paystack-signature: hex(HMAC-SHA512(secret, body)).
func VerifyPaystackSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, hmacSum(sha512.New, secret, body))
}

// VerifyNombaSignature checks nomba-signature: base64(HMAC-SHA256(secret, body)).
func VerifyNombaSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, hmacSum(sha256.New, secret, body))
}

// stripeV1Signature computes hex(HMAC-SHA256(secret, timestamp + "." + body)).
func stripeV1Signature(secret, timestamp string, body []byte) string {
	return hex.EncodeToString(hmacSum(sha256.New, secret, []byte(timestamp), []byte("."), body))
}
