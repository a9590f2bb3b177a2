// Copyright 2026 Mandatevault Ltd.

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader is the header carrying the HMAC signature on
// outbound deliveries.
const SignatureHeader = "X-Webhook-Signature"

// Sign returns the signature header value for the given body bytes:
// "sha256=" followed by the hex HMAC-SHA256 of the body under the
// secret. The body bytes must be exactly the bytes sent on the wire.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether the given hex signature is the HMAC-SHA256
// of the body under the secret. The comparison is constant-time.
func VerifyHMAC(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, mac.Sum(nil))
}
