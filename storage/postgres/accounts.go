package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/sessionauth/account"
)

const uniqueViolation = "23505"

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_lower_key"
)

// AccountRepository implements account.Store.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository returns a repository over db, which may be a *sql.DB
// or a transaction.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ account.Store = (*AccountRepository)(nil)

// FindByUsername looks up the exact username.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	query :=
		`SELECT id, username, password_hash, email, active, activation_key, created_at FROM users
		 WHERE username = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// FindByEmail matches the lower-cased email against the unique index.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	query :=
		`SELECT id, username, password_hash, email, active, activation_key, created_at FROM users
		 WHERE lower(email) = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *AccountRepository) scanOne(row *sql.Row) (*account.Account, error) {
	acc := &account.Account{}
	var key sql.NullString
	err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.Email, &acc.Active, &key, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	acc.ActivationKey = key.String
	return acc, nil
}

// Insert stores an inactive account. Unique violations map to
// account.ErrUsernameTaken or account.ErrEmailTaken.
func (r *AccountRepository) Insert(ctx context.Context, in account.NewAccount) (*account.Account, error) {
	query :=
		`INSERT INTO users (id, username, password_hash, email, active, activation_key, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		 `

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	id := uuid.NewString()

	_, err := r.db.ExecContext(ctx, query, id, in.Username, in.PasswordHash, in.Email, in.ActivationKey, createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return nil, account.ErrUsernameTaken
			case emailConstraint:
				return nil, account.ErrEmailTaken
			}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &account.Account{
		ID:            id,
		Username:      in.Username,
		PasswordHash:  in.PasswordHash,
		Email:         in.Email,
		ActivationKey: in.ActivationKey,
		CreatedAt:     createdAt,
	}, nil
}

// UpdatePassword replaces the digest, or returns account.ErrNotFound.
func (r *AccountRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2
		 WHERE username = $1
		 `

	res, err := r.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// Activate flips the account to active and clears the key in one conditional
// UPDATE, so a key can be consumed at most once.
func (r *AccountRepository) Activate(ctx context.Context, username, key string) error {
	if key == "" {
		return account.ErrActivationMismatch
	}

	query :=
		`UPDATE users SET active = TRUE, activation_key = NULL
		 WHERE username = $1 AND active = FALSE AND activation_key = $2
		 `

	res, err := r.db.ExecContext(ctx, query, username, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return account.ErrActivationMismatch
	}
	return nil
}
