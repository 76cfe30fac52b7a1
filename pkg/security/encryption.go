package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor seals data bound to an owner, such as the id of the record a
// value belongs to. Opening with a different owner fails.
type Encryptor interface {
	Seal(plaintext, owner []byte) ([]byte, error)
	Open(sealed, owner []byte) ([]byte, error)
}

// NewAESEncryptor returns an AES-GCM encryptor. key must be 16, 24 or 32 bytes.
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}
	return &gcmEncryptor{aead: aead}, nil
}

// NewAESEncryptorFromPassphrase derives a 256-bit key from a configured
// passphrase.
func NewAESEncryptorFromPassphrase(passphrase string) (Encryptor, error) {
	if passphrase == "" {
		return nil, ErrInvalidKeySize
	}
	key := sha256.Sum256([]byte(passphrase))
	return NewAESEncryptor(key[:])
}

// gcmEncryptor lays out sealed values as nonce||ciphertext.
type gcmEncryptor struct {
	aead cipher.AEAD
}

func (e *gcmEncryptor) Seal(plaintext, owner []byte) ([]byte, error) {
	out := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, ErrEncryption
	}
	return e.aead.Seal(out, out, plaintext, owner), nil
}

func (e *gcmEncryptor) Open(sealed, owner []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(sealed) < n+e.aead.Overhead() {
		return nil, ErrDecryption
	}
	plaintext, err := e.aead.Open(nil, sealed[:n], sealed[n:], owner)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
