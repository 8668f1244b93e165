package password

import (
	"errors"
	"fmt"
)

// Algorithm names accepted by [New].
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// ErrUnknownDigest is returned when a digest matches no supported algorithm.
var ErrUnknownDigest = errors.New("unknown password digest format")

// Hasher is the password hashing contract: salted one-way Hash, constant-time
// Verify, and NeedsRehash for parameter upgrades.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) (bool, error)
}

// Config selects the algorithm used for new digests.
type Config struct {
	Algorithm  string
	Argon2     Argon2Config
	BcryptCost int
}

// New builds a [Multi] that hashes with cfg.Algorithm and verifies digests of
// every supported algorithm.
func New(cfg Config) (*Multi, error) {
	argon, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	m := &Multi{argon2: argon, bcrypt: bc}
	switch cfg.Algorithm {
	case "", AlgorithmArgon2id:
		m.primary = argon
	case AlgorithmBcrypt:
		m.primary = bc
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	return m, nil
}

// Multi hashes with one primary algorithm and dispatches Verify on the digest
// prefix, so digests written under a previous algorithm keep verifying.
type Multi struct {
	primary Hasher
	argon2  *Argon2
	bcrypt  *Bcrypt
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password string, encodedHash string) (bool, error) {
	switch {
	case isArgon2Digest(encodedHash):
		return m.argon2.Verify(password, encodedHash)
	case isBcryptDigest(encodedHash):
		return m.bcrypt.Verify(password, encodedHash)
	default:
		return false, ErrUnknownDigest
	}
}

func (m *Multi) NeedsRehash(encodedHash string) (bool, error) {
	return m.primary.NeedsRehash(encodedHash)
}
