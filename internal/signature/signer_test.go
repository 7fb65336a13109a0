package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestGenerateSecretFormat(t *testing.T) {
	t.Parallel()

	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}

	if !strings.HasPrefix(secret, SecretPrefix) {
		t.Fatalf("secret %q missing %q prefix", secret, SecretPrefix)
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(secret, SecretPrefix))
	if err != nil {
		t.Fatalf("secret body is not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("secret entropy = %d bytes, want 32", len(raw))
	}

	other, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if secret == other {
		t.Fatal("secrets should be unique")
	}
}

func TestSignDeterministic(t *testing.T) {
	t.Parallel()

	timestamp := time.Unix(1_740_000_000, 0)
	payload := []byte(`{"message_id":"m1"}`)
	secret := "whsec_" + base64.RawStdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

	first := Sign("whd_1", timestamp, payload, secret)
	second := Sign("whd_1", timestamp, payload, secret)
	if first != second {
		t.Fatalf("signatures differ: %s vs %s", first, second)
	}

	if !strings.HasPrefix(first, Version+",") {
		t.Fatalf("signature %q missing %q prefix", first, Version+",")
	}
}

func TestSignMatchesManualComputation(t *testing.T) {
	t.Parallel()

	timestamp := time.Unix(1_740_000_000, 0)
	payload := []byte(`{"ok":true}`)
	key := "test-signing-key"

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte("whd_42.1740000000." + `{"ok":true}`))
	want := "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// The whsec_ prefix is transport dressing and must not enter the MAC.
	got := Sign("whd_42", timestamp, payload, "whsec_"+key)
	if got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}

	bare := Sign("whd_42", timestamp, payload, key)
	if bare != want {
		t.Fatalf("Sign() without prefix = %s, want %s", bare, want)
	}
}

func TestSignInputSensitivity(t *testing.T) {
	t.Parallel()

	timestamp := time.Unix(1_740_000_000, 0)
	payload := []byte(`{"n":1}`)
	secret := "whsec_key"

	base := Sign("whd_1", timestamp, payload, secret)

	if Sign("whd_2", timestamp, payload, secret) == base {
		t.Fatal("different delivery id should change signature")
	}
	if Sign("whd_1", timestamp.Add(time.Second), payload, secret) == base {
		t.Fatal("different timestamp should change signature")
	}
	if Sign("whd_1", timestamp, []byte(`{"n":2}`), secret) == base {
		t.Fatal("different payload should change signature")
	}
	if Sign("whd_1", timestamp, payload, "whsec_other") == base {
		t.Fatal("different secret should change signature")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	timestamp := time.Unix(1_740_000_000, 0)
	payload := []byte(`{"x":"y"}`)
	secret := "whsec_key"

	signature := Sign("whd_1", timestamp, payload, secret)
	if !Verify("whd_1", timestamp, payload, secret, signature) {
		t.Fatal("Verify() should accept the generated signature")
	}
	if Verify("whd_1", timestamp, payload, secret, "v1,bogus") {
		t.Fatal("Verify() should reject a forged signature")
	}
	if Verify("whd_1", timestamp.Add(time.Minute), payload, secret, signature) {
		t.Fatal("Verify() should reject a shifted timestamp")
	}
}
