package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest is how session tokens appear in storage keys and logs.
func TokenDigest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ShortDigest is a log-friendly prefix of TokenDigest.
func ShortDigest(token string) string {
	d := TokenDigest(token)
	return d[:12]
}
