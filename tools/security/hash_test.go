package security

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSecret_RoundTrip(t *testing.T) {
	req := require.New(t)

	for _, secret := range []string{"s", "correct horse battery staple", "ünïcødé", strings.Repeat("x", 1024)} {
		stored, err := HashSecret(secret)
		req.NoError(err)
		req.True(VerifySecret(secret, stored), secret)
		req.False(VerifySecret(secret+"!", stored), secret)
	}
}

func TestHashSecret_Salted(t *testing.T) {
	req := require.New(t)

	a, err := HashSecret("secret")
	req.NoError(err)
	b, err := HashSecret("secret")
	req.NoError(err)
	req.NotEqual(a, b)

	salt, digest, ok := strings.Cut(a, ":")
	req.True(ok)
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	req.NoError(err)
	req.Len(rawSalt, saltSize)
	rawDigest, err := base64.StdEncoding.DecodeString(digest)
	req.NoError(err)
	req.Len(rawDigest, sha256.Size)
}

func TestVerifySecret_KnownVector(t *testing.T) {
	req := require.New(t)

	salt := []byte("0123456789abcdef0123456789abcdef")
	sum := sha256.Sum256(append([]byte("pa55"), salt...))
	stored := base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(sum[:])

	req.True(VerifySecret("pa55", stored))
	req.False(VerifySecret("pass", stored))
}

func TestVerifySecret_Malformed(t *testing.T) {
	req := require.New(t)

	good, err := HashSecret("secret")
	req.NoError(err)
	salt, digest, _ := strings.Cut(good, ":")

	for _, stored := range []string{
		"",
		":",
		"nocolon",
		salt + ":",
		":" + digest,
		"!!!:" + digest,
		salt + ":!!!",
		salt + ":" + digest + ":extra",
		salt + ":" + base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		req.False(VerifySecret("secret", stored), stored)
	}
}
