package goSession

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// credentialHasher derives the stored fingerprint of a refresh credential. The
// raw credential is never persisted.
type credentialHasher struct {
	secret []byte
}

func newCredentialHasher(secret []byte) *credentialHasher {
	return &credentialHasher{secret: append([]byte(nil), secret...)}
}

// Hash returns hex(HMAC-SHA256(secret, credential)).
func (h *credentialHasher) Hash(credential string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(credential))
	return hex.EncodeToString(mac.Sum(nil))
}

// credentialHashEqual compares two hex fingerprints in constant time.
func credentialHashEqual(stored, computed string) bool {
	if len(stored) != len(computed) || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}
