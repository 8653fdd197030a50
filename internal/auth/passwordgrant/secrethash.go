package passwordgrant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SecretHash computes the client signature the identity pool verifies on
// every request: base64(HMAC-SHA256(username+clientID, clientSecret)).
// The derivation must match the server byte-for-byte. Returns "" when no
// secret is configured; callers omit the field in that case rather than
// sending a placeholder.
func SecretHash(username, clientID, clientSecret string) string {
	if clientSecret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
