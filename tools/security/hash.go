package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"ArgbRelay/tools/errs"
)

const saltSize = 32

// HashSecret returns base64(salt):base64(sha256(secret||salt)) with a fresh random salt.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errs.WrapMsg(err, "generate salt")
	}
	digest := digestOf(secret, salt)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(digest), nil
}

// VerifySecret reports whether secret matches stored. Any malformed stored form is a mismatch.
func VerifySecret(secret, stored string) bool {
	saltPart, digestPart, ok := strings.Cut(stored, ":")
	if !ok || saltPart == "" || digestPart == "" || strings.Contains(digestPart, ":") {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(digestPart)
	if err != nil || len(want) != sha256.Size {
		return false
	}
	return subtle.ConstantTimeCompare(digestOf(secret, salt), want) == 1
}

func digestOf(secret string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(salt)
	return h.Sum(nil)
}
