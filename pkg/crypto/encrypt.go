package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

// SealedExt is appended to files written by SealFile.
const SealedExt = ".enc"

// magic prefixes sealed files so Open can reject unrelated input early.
var magic = []byte("CHAMA1")

// Sealer encrypts backup artifacts with AES-GCM.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a Sealer with the given 32-byte key.
func NewSealer(key string) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{gcm: gcm}, nil
}

// Seal returns magic || nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+len(nonce)+len(plaintext)+s.gcm.Overhead())
	out = append(out, magic...)
	out = append(out, nonce...)
	return s.gcm.Seal(out, nonce, plaintext, magic), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, magic) {
		return nil, errors.New("not a sealed artifact")
	}
	sealed = sealed[len(magic):]

	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// SealFile encrypts path into path+SealedExt and removes the plaintext file.
// It returns the sealed path.
func (s *Sealer) SealFile(path string) (string, error) {
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	sealed, err := s.Seal(plaintext)
	if err != nil {
		return "", err
	}

	dst := path + SealedExt
	if err := os.WriteFile(dst, sealed, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove plaintext %s: %w", path, err)
	}
	return dst, nil
}
