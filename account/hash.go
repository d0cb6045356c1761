package account

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/md4" //nolint:staticcheck // MD4 is required for NT hash compatibility
)

const (
	SchemeSSHA = "{SSHA}"
	saltLength = 8
)

// Hasher turns a plaintext password into the unix userPassword value and the
// sambaNTPassword value.
type Hasher interface {
	Hash(password string) (unixHash, ntHash string, err error)
}

type CredentialHasher struct {
	rand io.Reader
}

func NewCredentialHasher() *CredentialHasher {
	return &CredentialHasher{rand: rand.Reader}
}

func (h *CredentialHasher) Hash(password string) (string, string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return SSHA(password, salt), NTHash(password), nil
}

// SSHA returns "{SSHA}" + base64(SHA1(password + salt) + salt).
func SSHA(password string, salt []byte) string {
	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	sum := h.Sum(nil)

	data := make([]byte, 0, len(sum)+len(salt))
	data = append(data, sum...)
	data = append(data, salt...)

	return SchemeSSHA + base64.StdEncoding.EncodeToString(data)
}

// NTHash returns the upper-case hex MD4 digest of the UTF-16LE password.
func NTHash(password string) string {
	units := utf16.Encode([]rune(password))
	passwordBytes := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(passwordBytes[i*2:], u)
	}

	h := md4.New()
	h.Write(passwordBytes)
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}
