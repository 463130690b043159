package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrDecryptFailed = errors.New("secrets: decryption failed")

// Keychain seals and opens small secrets (engine API tokens) with a
// fixed symmetric key. Plaintext only ever exists in memory at the
// point of use.
type Keychain struct {
	key [32]byte
}

// NewKeychain expects a hex-encoded 32-byte key.
func NewKeychain(hexKey string) (*Keychain, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: key is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(raw))
	}

	kc := &Keychain{}
	copy(kc.key[:], raw)
	return kc, nil
}

// Seal encrypts plaintext and returns base64(nonce || box).
func (k *Keychain) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &k.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. A wrong key or tampered ciphertext returns
// ErrDecryptFailed, never garbage plaintext.
func (k *Keychain) Open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("secrets: ciphertext is not valid base64: %w", err)
	}
	if len(box) <= 24 {
		return "", ErrDecryptFailed
	}

	var nonce [24]byte
	copy(nonce[:], box[:24])

	plaintext, ok := secretbox.Open(nil, box[24:], &nonce, &k.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
