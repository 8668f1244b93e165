package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const sessionTokenSize = 32

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionToken returns 32 random bytes encoded as unpadded base64url.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidSessionToken reports whether token has the shape produced by
// NewSessionToken. It does not consult any store.
func ValidSessionToken(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(sessionTokenSize) {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == sessionTokenSize
}

// RandomKey returns length characters drawn uniformly from [A-Za-z0-9].
func RandomKey(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid key length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(keyAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}
	return b.String(), nil
}
