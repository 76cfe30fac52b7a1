package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", hash)

	assert.NoError(t, hasher.Compare(hash, "correct-horse"))
	assert.ErrorIs(t, hasher.Compare(hash, "wrong-horse"), ErrPasswordMismatch)
}

func TestBcryptHasherRejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestAESEncryptor(t *testing.T) {
	enc, err := NewAESEncryptorFromPassphrase("record-key")
	require.NoError(t, err)
	owner := []byte("record-1")

	sealed, err := enc.Seal([]byte("amoxicillin 500mg"), owner)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "amoxicillin")

	plain, err := enc.Open(sealed, owner)
	require.NoError(t, err)
	assert.Equal(t, "amoxicillin 500mg", string(plain))

	_, err = enc.Open(sealed[:4], owner)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestAESEncryptorBindsOwner(t *testing.T) {
	enc, err := NewAESEncryptorFromPassphrase("record-key")
	require.NoError(t, err)

	sealed, err := enc.Seal([]byte("fever"), []byte("record-1"))
	require.NoError(t, err)

	_, err = enc.Open(sealed, []byte("record-2"))
	assert.ErrorIs(t, err, ErrDecryption)

	other, err := NewAESEncryptorFromPassphrase("another-key")
	require.NoError(t, err)
	_, err = other.Open(sealed, []byte("record-1"))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := NewAESEncryptorFromPassphrase("")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
