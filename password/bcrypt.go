package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptMaxLength is the longest password, in bytes, bcrypt accepts.
const BcryptMaxLength = 72

// Bcrypt hashes passwords with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt validates cost against bcrypt's accepted range.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a bcrypt digest with an embedded random salt. Inputs over
// BcryptMaxLength bytes are rejected by bcrypt itself.
func (b *Bcrypt) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify compares password against a bcrypt digest.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// NeedsRehash reports whether encodedHash is not bcrypt or has a lower cost.
func (b *Bcrypt) NeedsRehash(encodedHash string) (bool, error) {
	if !isBcryptDigest(encodedHash) {
		return true, nil
	}
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}

func isBcryptDigest(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
