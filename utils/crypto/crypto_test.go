package crypto

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault("test-master-secret")
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}

	blob, err := vault.Encrypt("sk-nanogpt-abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	plaintext, err := vault.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != "sk-nanogpt-abc123" {
		t.Errorf("expected original plaintext, got %q", plaintext)
	}
}

func TestVaultBlobFormat(t *testing.T) {
	vault, _ := NewVault("test-master-secret")

	blob, err := vault.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	parts := strings.Split(blob, ":")
	if len(parts) != 2 {
		t.Fatalf("expected nonce:ciphertext blob, got %q", blob)
	}
	if _, err := hex.DecodeString(parts[0]); err != nil {
		t.Errorf("nonce segment is not hex: %v", err)
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		t.Errorf("ciphertext segment is not hex: %v", err)
	}
	if strings.Contains(blob, "credential") {
		t.Error("blob must not contain the plaintext")
	}
}

func TestVaultEncryptNonDeterministic(t *testing.T) {
	vault, _ := NewVault("test-master-secret")

	first, err := vault.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := vault.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if first == second {
		t.Error("expected distinct blobs for repeated encryption of the same plaintext")
	}
}

func TestVaultDecryptTamperedBlob(t *testing.T) {
	vault, _ := NewVault("test-master-secret")

	blob, err := vault.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip the last ciphertext nibble.
	last := blob[len(blob)-1]
	var flipped byte = '0'
	if last == '0' {
		flipped = '1'
	}
	tampered := blob[:len(blob)-1] + string(flipped)

	if _, err := vault.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for tampered blob, got %v", err)
	}
}

func TestVaultDecryptWrongKey(t *testing.T) {
	vault, _ := NewVault("test-master-secret")
	other, _ := NewVault("another-master-secret")

	blob, err := vault.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := other.Decrypt(blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with the wrong key, got %v", err)
	}
}

func TestVaultDecryptMalformedBlob(t *testing.T) {
	vault, _ := NewVault("test-master-secret")

	cases := []string{
		"",
		"nohexhere",
		"deadbeef",                 // missing separator
		"zz:deadbeef",              // bad nonce hex
		"deadbeef:zz",              // bad ciphertext hex
		"dead:beef:cafe",            // too many segments
		"deadbeefdeadbeefdeadbeef:", // empty ciphertext
	}

	for _, blob := range cases {
		if _, err := vault.Decrypt(blob); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("blob %q: expected ErrDecryptionFailed, got %v", blob, err)
		}
	}
}

func TestVaultKeyDerivationDeterministic(t *testing.T) {
	first, err := NewVault("same-secret")
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	second, err := NewVault("same-secret")
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}

	blob, err := first.Encrypt("credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	plaintext, err := second.Decrypt(blob)
	if err != nil {
		t.Fatalf("a second vault with the same secret must decrypt: %v", err)
	}
	if plaintext != "credential" {
		t.Errorf("expected original plaintext, got %q", plaintext)
	}
}

func TestNewVaultEmptySecret(t *testing.T) {
	if _, err := NewVault(""); err == nil {
		t.Error("expected error for empty master secret")
	}
}

func TestDeriveKeyLength(t *testing.T) {
	key := DeriveKey("secret", []byte("salt"))
	if len(key) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(key))
	}
}

func TestEncryptDataRejectsShortKey(t *testing.T) {
	if _, _, err := EncryptData([]byte("data"), []byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
}
