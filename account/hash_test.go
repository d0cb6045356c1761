package account

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNTHash(t *testing.T) {
	assert.Equal(t, "31D6CFE0D16AE931B73C59D7E0C089C0", NTHash(""))
	assert.Equal(t, "8846F7EAEE8FB117AD06BDD830B7586C", NTHash("password"))
}

func TestSSHA(t *testing.T) {
	salt := []byte("saltsalt")
	hash := SSHA("Abcdef1!", salt)

	require.True(t, strings.HasPrefix(hash, SchemeSSHA))
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hash, SchemeSSHA))
	require.NoError(t, err)
	assert.Len(t, data, 20+len(salt))
	assert.Equal(t, salt, data[20:])

	assert.True(t, verifySSHA("Abcdef1!", hash))
	assert.False(t, verifySSHA("abcdef1!", hash))
	assert.False(t, verifySSHA("Abcdef1!", "{SHA}"+hash[len(SchemeSSHA):]))
}

func TestCredentialHasher(t *testing.T) {
	h := &CredentialHasher{rand: bytes.NewReader([]byte("12345678"))}

	unixHash, ntHash, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, SSHA("Abcdef1!", []byte("12345678")), unixHash)
	assert.Equal(t, NTHash("Abcdef1!"), ntHash)
}

func TestCredentialHasher_RandomSalt(t *testing.T) {
	h := NewCredentialHasher()

	first, _, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	second, _, err := h.Hash("Abcdef1!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, verifySSHA("Abcdef1!", first))
	assert.True(t, verifySSHA("Abcdef1!", second))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestCredentialHasher_SaltFailure(t *testing.T) {
	h := &CredentialHasher{rand: failingReader{}}

	_, _, err := h.Hash("Abcdef1!")
	assert.Error(t, err)
}

// verifySSHA reports whether encoded is an {SSHA} hash of password.
func verifySSHA(password, encoded string) bool {
	if !strings.HasPrefix(encoded, SchemeSSHA) {
		return false
	}
	data, err := base64.StdEncoding.DecodeString(encoded[len(SchemeSSHA):])
	if err != nil || len(data) <= sha1.Size {
		return false
	}
	return SSHA(password, data[sha1.Size:]) == encoded
}
