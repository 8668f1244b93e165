package account

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. It is safe for concurrent use and is
// meant for tests and single-process development servers.
type MemoryStore struct {
	mu         sync.RWMutex
	byUsername map[string]*Account
	byEmail    map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUsername: make(map[string]*Account),
		byEmail:    make(map[string]string),
	}
}

// FindByUsername returns a copy of the account with the exact username.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *acc
	return &clone, nil
}

// FindByEmail matches email case-insensitively after trimming spaces.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.byUsername[username]
	return &clone, nil
}

// Insert stores an inactive account under a new UUID. A zero CreatedAt is
// set to the current time.
func (s *MemoryStore) Insert(_ context.Context, in NewAccount) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[in.Username]; ok {
		return nil, ErrUsernameTaken
	}
	email := normalizeEmail(in.Email)
	if _, ok := s.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	acc := &Account{
		ID:            uuid.NewString(),
		Username:      in.Username,
		PasswordHash:  in.PasswordHash,
		Email:         in.Email,
		ActivationKey: in.ActivationKey,
		CreatedAt:     createdAt,
	}
	s.byUsername[acc.Username] = acc
	s.byEmail[email] = acc.Username

	clone := *acc
	return &clone, nil
}

// UpdatePassword replaces the stored digest.
func (s *MemoryStore) UpdatePassword(_ context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byUsername[username]
	if !ok {
		return ErrNotFound
	}
	acc.PasswordHash = passwordHash
	return nil
}

// Activate marks the account active when key matches, and clears the key.
// Any mismatch, including an unknown user, returns ErrActivationMismatch.
func (s *MemoryStore) Activate(_ context.Context, username, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byUsername[username]
	if !ok || acc.Active || key == "" {
		return ErrActivationMismatch
	}
	if subtle.ConstantTimeCompare([]byte(acc.ActivationKey), []byte(key)) != 1 {
		return ErrActivationMismatch
	}
	acc.Active = true
	acc.ActivationKey = ""
	return nil
}

// Len reports the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsername)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
