package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptRoundTrip(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	digest, err := b.Hash("hunter22")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, err := b.Verify("hunter22", digest); err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	if ok, err := b.Verify("hunter23", digest); err != nil || ok {
		t.Fatalf("expected mismatch without error, ok=%v err=%v", ok, err)
	}
}

func TestNewBcryptRejectsCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected cost error")
	}
}

func TestMultiVerifiesBothAlgorithms(t *testing.T) {
	m, err := New(Config{Algorithm: AlgorithmArgon2id, Argon2: fastConfig(), BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	argonDigest, err := m.Hash("s3cret-value")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(argonDigest, "$argon2id$") {
		t.Fatalf("expected argon2id primary, got %s", argonDigest)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("s3cret-value"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	for _, digest := range []string{argonDigest, string(legacy)} {
		ok, err := m.Verify("s3cret-value", digest)
		if err != nil || !ok {
			t.Fatalf("expected %q to verify, ok=%v err=%v", digest[:8], ok, err)
		}
		ok, err = m.Verify("other-value", digest)
		if err != nil || ok {
			t.Fatalf("expected %q mismatch, ok=%v err=%v", digest[:8], ok, err)
		}
	}

	needs, err := m.NeedsRehash(string(legacy))
	if err != nil || !needs {
		t.Fatalf("expected legacy digest to need rehash, needs=%v err=%v", needs, err)
	}
}

func TestMultiBcryptPrimary(t *testing.T) {
	m, err := New(Config{Algorithm: AlgorithmBcrypt, Argon2: fastConfig(), BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	digest, err := m.Hash("pw-12345")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$2a$") {
		t.Fatalf("expected bcrypt digest, got %s", digest)
	}
}

func TestMultiUnknownDigest(t *testing.T) {
	m, err := New(Config{Argon2: fastConfig(), BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Verify("x", "plaintext-in-db"); !errors.Is(err, ErrUnknownDigest) {
		t.Fatalf("expected ErrUnknownDigest, got %v", err)
	}
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := New(Config{Algorithm: "md5", Argon2: fastConfig(), BcryptCost: bcrypt.MinCost}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
