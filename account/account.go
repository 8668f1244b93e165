// Package account defines the credential record and the storage contract the
// engine uses to find, create, activate and re-hash accounts.
//
// Implementations live next to their backends: [MemoryStore] here for tests and
// development, and storage/postgres for production.
package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")
	// ErrUsernameTaken is returned by Insert when the username already exists.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrEmailTaken is returned by Insert when the email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrActivationMismatch is returned by Activate when the account is already
	// active, unknown, or the key does not match.
	ErrActivationMismatch = errors.New("activation key mismatch")
)

// Account is a stored credential record. Username is unique and case-sensitive.
type Account struct {
	ID            string
	Username      string
	PasswordHash  string
	Email         string
	Active        bool
	ActivationKey string
	CreatedAt     time.Time
}

// NewAccount carries the fields supplied at registration. Accounts are always
// inserted inactive.
type NewAccount struct {
	Username      string
	PasswordHash  string
	Email         string
	ActivationKey string
	CreatedAt     time.Time
}

// Store is the credential store contract.
//
// Lookups return ErrNotFound on absence. Insert maps unique violations to
// ErrUsernameTaken or ErrEmailTaken. Activate consumes the key in a single
// conditional write.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Insert(ctx context.Context, acc NewAccount) (*Account, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	Activate(ctx context.Context, username, key string) error
}
