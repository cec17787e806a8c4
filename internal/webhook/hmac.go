package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

var errVerification = fmt.Errorf("webhook verification failed")

// verifyHMACSignature verifies an HMAC signature against the request body.
//
// Supported formats:
//   - "sha1=<hex>" (Intercom X-Hub-Signature)
//   - "sha256=<hex>" (GitHub style)
//   - "<hex>" (plain hex, SHA-256)
//
// All errors are generic to prevent information leakage.
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return errVerification
	}

	newHash, actualMAC, err := parseSignature(signature)
	if err != nil {
		return errVerification
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), actualMAC) != 1 {
		return errVerification
	}
	return nil
}

// parseSignature splits an optional algorithm prefix off signature and
// decodes the hex digest.
func parseSignature(signature string) (func() hash.Hash, []byte, error) {
	switch {
	case strings.HasPrefix(signature, "sha1="):
		b, err := hex.DecodeString(strings.TrimPrefix(signature, "sha1="))
		return sha1.New, b, err
	case strings.HasPrefix(signature, "sha256="):
		b, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
		return sha256.New, b, err
	}
	b, err := hex.DecodeString(signature)
	return sha256.New, b, err
}

// secretsEqual compares fixed-size digests so neither the content nor the
// length of the configured secret leaks through timing.
func secretsEqual(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	a := blake3.Sum256([]byte(presented))
	b := blake3.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
