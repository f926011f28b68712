// Package signature verifies inbound webhook payloads against the
// per-subscription shared secret using HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the algorithm prefix GitHub puts in front of the hex digest
// in the X-Hub-Signature-256 header.
const Prefix = "sha256="

// Sign computes the hex-encoded HMAC-SHA256 of body under secret, with the
// algorithm prefix attached. It produces exactly the header value GitHub
// sends, which makes it useful for tests and for registering webhooks.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is a valid signature for body under secret.
// It never returns an error: an absent, malformed, or mismatched signature is
// simply false, and the caller must reject the request with 401.
//
// The comparison runs over fixed-length MAC digests via hmac.Equal, so a
// mismatch does not leak timing information about where the digests diverge.
func Verify(body []byte, provided, secret string) bool {
	if provided == "" || secret == "" {
		return false
	}

	hexDigest, ok := strings.CutPrefix(provided, Prefix)
	if !ok {
		return false
	}

	providedMAC, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(providedMAC, mac.Sum(nil))
}
