package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for key derivation
	Argon2Time      uint32 = 1
	Argon2Memory    uint32 = 64 * 1024 // 64 MB
	Argon2Threads   uint8  = 4
	Argon2KeyLength uint32 = 32 // 256 bits for AES-256
)

// keyDerivationSalt fixes the master-secret derivation so every process
// sharing DB_ENCRYPTION_KEY derives the same vault key. Per-encryption
// randomness comes from the GCM nonce, not the KDF.
var keyDerivationSalt = []byte("nanogpt-proxy.vault.v1")

var (
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// DeriveKey derives an encryption key from a secret and salt using Argon2id
func DeriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(secret),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Threads,
		Argon2KeyLength,
	)
}

// EncryptData encrypts arbitrary data using AES-256-GCM
// Returns the ciphertext (with the GCM tag appended) and the nonce
func EncryptData(data []byte, encryptionKey []byte) (encrypted []byte, nonce []byte, err error) {
	if len(encryptionKey) != 32 {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted = gcm.Seal(nil, nonce, data, nil)
	return encrypted, nonce, nil
}

// DecryptData decrypts AES-256-GCM ciphertext produced by EncryptData
func DecryptData(encrypted []byte, nonce []byte, encryptionKey []byte) ([]byte, error) {
	if len(encryptionKey) != 32 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// Vault encrypts and decrypts per-user upstream credentials with a key
// derived once from the operator-supplied master secret. The derived key
// lives only in memory.
type Vault struct {
	key []byte
}

// NewVault derives the vault key from the master secret.
func NewVault(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, errors.New("master secret is required")
	}

	return &Vault{key: DeriveKey(masterSecret, keyDerivationSalt)}, nil
}

// Encrypt seals a plaintext credential into a colon-joined hex blob of the
// form "<nonce>:<ciphertext+tag>". A fresh nonce is generated per call, so
// encrypting the same plaintext twice yields different blobs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	encrypted, nonce, err := EncryptData([]byte(plaintext), v.key)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(encrypted), nil
}

// Decrypt opens a blob produced by Encrypt. Malformed blobs and
// authentication failures both surface as ErrDecryptionFailed; a tampered
// blob never decrypts to wrong plaintext silently.
func (v *Vault) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed blob", ErrDecryptionFailed)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: malformed nonce", ErrDecryptionFailed)
	}

	encrypted, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryptionFailed)
	}

	plaintext, err := DecryptData(encrypted, nonce, v.key)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
