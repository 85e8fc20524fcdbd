package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	jerrors "github.com/illarion/jarida/internal/errors"
)

const (
	NonceSize = 12 // GCM nonce size
	TagSize   = 16 // GCM authentication tag size
)

// Seal encrypts plaintext with AES-256-GCM under key, binding aad.
// Output layout: nonce || ciphertext || tag.
func Seal(key Key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(out, out[:NonceSize], plaintext, aad), nil
}

// Open authenticates and decrypts a blob produced by Seal. All failures
// collapse into errors.ErrDecryptionFailed.
func Open(key Key, blob, aad []byte) ([]byte, error) {
	if len(blob) < NonceSize+TagSize {
		return nil, jerrors.ErrDecryptionFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, jerrors.ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], aad)
	if err != nil {
		return nil, jerrors.ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
