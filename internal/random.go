package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// CodeBytes is the entropy of a verification code before hex encoding.
const CodeBytes = 32

// NewCode returns a fresh verification code: CodeBytes random bytes, hex encoded.
func NewCode() (string, error) {
	raw := make([]byte, CodeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashCode returns the storage identity of a code. Only the hash ever reaches Redis.
func HashCode(code string) (string, error) {
	if code == "" {
		return "", errors.New("empty code")
	}
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:]), nil
}
