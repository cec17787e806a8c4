package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// computeSignature returns the "<algo>=<hex>" signature for body.
func computeSignature(body []byte, secret, algo string) string {
	newHash := sha256.New
	if algo == "sha1" {
		newHash = sha1.New
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return algo + "=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMACSignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"type":"notification_event","topic":"conversation.user.created"}`)

	sha1Sig := computeSignature(body, secret, "sha1")
	sha256Sig := computeSignature(body, secret, "sha256")

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{
			name:      "valid signature - Intercom sha1",
			body:      body,
			signature: sha1Sig,
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "valid signature - sha256 prefix",
			body:      body,
			signature: sha256Sig,
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "valid signature - plain hex",
			body:      body,
			signature: strings.TrimPrefix(sha256Sig, "sha256="),
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "invalid signature - algorithm mismatch",
			body:      body,
			signature: "sha256=" + strings.TrimPrefix(sha1Sig, "sha1="),
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - tampered body",
			body:      []byte(`{"topic":"hacked"}`),
			signature: sha1Sig,
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - wrong secret",
			body:      body,
			signature: sha1Sig,
			secret:    "wrong-secret",
			wantErr:   true,
		},
		{
			name:      "invalid signature - empty signature",
			body:      body,
			signature: "",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid signature - empty secret",
			body:      body,
			signature: sha1Sig,
			secret:    "",
			wantErr:   true,
		},
		{
			name:      "invalid signature - malformed hex",
			body:      body,
			signature: "sha1=not-valid-hex",
			secret:    secret,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyHMACSignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyHMACSignature() error = %v, wantErr %v", err, tt.wantErr)
			}

			// All errors should be generic (no information leakage)
			if err != nil && err.Error() != "webhook verification failed" {
				t.Errorf("error should be generic, got: %v", err)
			}
		})
	}
}

func TestSecretsEqual(t *testing.T) {
	if !secretsEqual("secret", "secret") {
		t.Error("matching secrets should compare equal")
	}
	if secretsEqual("incorrect", "secret") {
		t.Error("different secrets should not compare equal")
	}
	if secretsEqual("", "secret") {
		t.Error("empty credential should never match")
	}
	if secretsEqual("secret", "") {
		t.Error("empty configured secret should never match")
	}
}
