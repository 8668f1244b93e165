package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Cost floor enforced on configuration and on stored digests.
const (
	minMemoryKB   uint32 = 8 * 1024
	minSaltLength        = 16
	minKeyLength         = 16
)

var (
	errMalformedDigest = errors.New("malformed argon2id digest")
	errWeakDigest      = errors.New("argon2id digest parameters below floor")
)

// Argon2Config holds the argon2id cost parameters. Memory is in KB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes passwords with argon2id and encodes them as PHC strings:
//
//	$argon2id$v=19$m=<KB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Salt and key are unpadded standard base64; padded values are accepted on
// read.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg against the cost floor and returns a hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return &Argon2{config: cfg}, nil
}

// argonDigest is a decoded PHC string.
type argonDigest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d argonDigest) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.parallelism,
		base64.RawStdEncoding.EncodeToString(d.salt),
		base64.RawStdEncoding.EncodeToString(d.key),
	)
}

func (d argonDigest) derive(password string) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, uint32(len(d.key)))
}

// Hash derives a key under a fresh random salt. The password bytes are used
// as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	d := argonDigest{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
		key:         make([]byte, a.config.KeyLength),
	}
	if _, err := rand.Read(d.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	d.key = d.derive(password)
	return d.String(), nil
}

// Verify re-derives the key with the digest's own parameters and compares in
// constant time. A malformed digest is an error; a mismatch is not.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	d, err := decodeArgonDigest(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.derive(password), d.key) == 1, nil
}

// NeedsRehash reports true for foreign digests and for argon2id digests
// weaker than, or with a different key length from, the configuration.
func (a *Argon2) NeedsRehash(encodedHash string) (bool, error) {
	if !isArgon2Digest(encodedHash) {
		return true, nil
	}
	d, err := decodeArgonDigest(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := d.memory < a.config.Memory ||
		d.time < a.config.Time ||
		d.parallelism < a.config.Parallelism ||
		uint32(len(d.key)) != a.config.KeyLength
	return weaker, nil
}

func decodeArgonDigest(encoded string) (argonDigest, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonDigest{}, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return argonDigest{}, errMalformedDigest
	}
	if version != argon2.Version {
		return argonDigest{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var d argonDigest
	var lanes uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &lanes); err != nil {
		return argonDigest{}, errMalformedDigest
	}
	if d.memory < minMemoryKB || d.time < 1 || lanes < 1 || lanes > 255 {
		return argonDigest{}, errWeakDigest
	}
	d.parallelism = uint8(lanes)

	var err error
	if d.salt, err = decodeB64(parts[4]); err != nil || len(d.salt) < minSaltLength {
		return argonDigest{}, errMalformedDigest
	}
	if d.key, err = decodeB64(parts[5]); err != nil || len(d.key) == 0 {
		return argonDigest{}, errMalformedDigest
	}
	return d, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func isArgon2Digest(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$argon2id$")
}
