// Package crypto seals provider credentials before they are written to the
// settings record, using XChaCha20-Poly1305.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required key size (32 bytes)
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the extended nonce size (24 bytes)
	NonceSize = chacha20poly1305.NonceSizeX

	// sealedPrefix marks values produced by Encrypt.
	sealedPrefix = "enc:v1:"
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes")
	ErrEmptySecret        = errors.New("encryption secret must not be empty")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrNotSealed          = errors.New("value is not sealed")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// Encryptor handles XChaCha20-Poly1305 encryption and decryption
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new Encryptor with the given key.
// Key must be exactly 32 bytes.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	keyCopy := make([]byte, KeySize)
	copy(keyCopy, key)

	return &Encryptor{key: keyCopy}, nil
}

// NewEncryptorFromSecret derives a key from an arbitrary configured secret.
func NewEncryptorFromSecret(secret string) (*Encryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("lectern provider credentials"))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return NewEncryptor(key)
}

// Encrypt seals plaintext. The result is "enc:v1:" followed by the
// base64-encoded nonce and ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *Encryptor) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if !IsSealed(value) {
		return "", ErrNotSealed
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// IsSealed reports whether value was produced by Encrypt.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// GenerateKey returns a random base64-encoded secret suitable for
// NewEncryptorFromSecret.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
