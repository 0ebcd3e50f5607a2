package index

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Sealer encrypts per-project upstream credentials before they touch the
// settings table. AES-256-GCM with a random nonce prepended to the
// ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer parses a hex-encoded 32-byte key.
func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, errors.ConfigError("sealing key must be 64 hex characters (32 bytes)").Build()
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.ConfigError("invalid sealing key").Build()
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to construct AEAD").Build()
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext; each call uses a fresh nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.InternalError("failed to generate nonce").Build()
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed credential.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.ValidationError("sealed credential is truncated").Build()
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.ValidationError("sealed credential failed authentication").Build()
	}
	return plaintext, nil
}
