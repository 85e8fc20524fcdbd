package crypto

import (
	"bytes"
	"testing"

	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) Key {
	t.Helper()
	k, err := GenerateRandom(KeySize)
	require.NoError(t, err)
	return Key(k)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := randomKey(t)
	aad := []byte("20240101T120000Z")

	for _, plaintext := range [][]byte{
		{},
		[]byte("x"),
		[]byte("Dear diary,\ntoday was fine.\n"),
		bytes.Repeat([]byte{0, 1, 2, 255}, 64*1024),
	} {
		blob, err := Seal(key, plaintext, aad)
		require.NoError(t, err)
		assert.Len(t, blob, NonceSize+len(plaintext)+TagSize)

		got, err := Open(key, blob, aad)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, got))
	}
}

func TestOpen_TamperDetection(t *testing.T) {
	key := randomKey(t)
	aad := []byte("id")
	blob, err := Seal(key, []byte("the quick brown fox"), aad)
	require.NoError(t, err)

	for i := 0; i < len(blob); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := bytes.Clone(blob)
			tampered[i] ^= 1 << bit

			got, err := Open(key, tampered, aad)
			require.ErrorIs(t, err, jerrors.ErrDecryptionFailed, "byte %d bit %d", i, bit)
			require.Nil(t, got)
		}
	}
}

func TestOpen_WrongKey(t *testing.T) {
	blob, err := Seal(randomKey(t), []byte("secret"), nil)
	require.NoError(t, err)

	_, err = Open(randomKey(t), blob, nil)
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
}

func TestOpen_WrongAssociatedData(t *testing.T) {
	key := randomKey(t)
	blob, err := Seal(key, []byte("entry one"), []byte("20240101T000000Z"))
	require.NoError(t, err)

	_, err = Open(key, blob, []byte("20240102T000000Z"))
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
}

func TestOpen_OpaqueErrors(t *testing.T) {
	key := randomKey(t)
	blob, err := Seal(key, []byte("secret"), nil)
	require.NoError(t, err)

	truncated := blob[:NonceSize+TagSize-1]
	_, errShort := Open(key, truncated, nil)
	_, errKey := Open(randomKey(t), blob, nil)
	_, errBadKey := Open(Key([]byte("short")), blob, nil)

	assert.Equal(t, jerrors.ErrDecryptionFailed, errShort)
	assert.Equal(t, errShort, errKey)
	assert.Equal(t, errShort, errBadKey)
}

func TestSeal_NonceUniqueness(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte("same plaintext every time")
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		blob, err := Seal(key, plaintext, nil)
		require.NoError(t, err)
		nonce := string(blob[:NonceSize])
		_, dup := seen[nonce]
		require.False(t, dup, "nonce reused after %d encryptions", i)
		seen[nonce] = struct{}{}
	}
}
