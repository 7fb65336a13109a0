// Package signature implements the Standard Webhooks signing scheme used on
// every outbound delivery: HMAC-SHA256 over "id.timestamp.payload", emitted
// as "v1,<base64 signature>".
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SecretPrefix marks webhook signing secrets (whsec_...).
	SecretPrefix = "whsec_"
	// Version prefixes every emitted signature.
	Version = "v1"

	secretEntropyBytes = 32
)

// GenerateSecret returns a new signing secret: whsec_ followed by 32 bytes
// of random material, base64-encoded without padding.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return SecretPrefix + base64.RawStdEncoding.EncodeToString(raw), nil
}

// Sign produces the signature for one delivery attempt. It is stateless and
// deterministic: identical inputs always yield the identical signature, so
// receivers and tests can verify independently.
func Sign(deliveryID string, timestamp time.Time, payload []byte, secret string) string {
	key := strings.TrimPrefix(secret, SecretPrefix)

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(deliveryID))
	mac.Write([]byte("."))
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)

	return Version + "," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(deliveryID string, timestamp time.Time, payload []byte, secret string, provided string) bool {
	expected := Sign(deliveryID, timestamp, payload, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
