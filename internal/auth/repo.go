package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finwise-app/finwise/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for user accounts.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	// ConsumeResetToken atomically replaces the password hash and clears
	// both reset columns for the record matching email, the exact token,
	// and an expiry strictly after now. It reports whether a row matched.
	ConsumeResetToken(ctx context.Context, email, token, passwordHash string, now time.Time) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts a new account. Duplicate emails surface as
// httpx.ErrDuplicate via the uq_users_email constraint; the handler-level
// existence check alone would be racy.
func (r *PGRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
		return err
	}
	return nil
}

// FindByEmail fetches a user by normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, reset_token, reset_token_expiry, created_at
		 FROM users WHERE email = $1`, email))
}

// FindByID fetches a user by identifier.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, reset_token, reset_token_expiry, created_at
		 FROM users WHERE id = $1`, id))
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.ResetToken, &user.ResetTokenExpiry, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the stored hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetResetToken stores a fresh reset token, overwriting any prior one.
func (r *PGRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = $1, reset_token_expiry = $2 WHERE id = $3`,
		token, expiry, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ConsumeResetToken performs the reset in a single write so the token can
// never be used twice.
func (r *PGRepository) ConsumeResetToken(ctx context.Context, email, token, passwordHash string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $1, reset_token = NULL, reset_token_expiry = NULL
		 WHERE email = $2 AND reset_token = $3 AND reset_token_expiry > $4`,
		passwordHash, email, token, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepository)(nil)
