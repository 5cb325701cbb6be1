package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/markdave123/contexta/backend/internal/model/user"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrPhoneTaken   = errors.New("phone already registered")
	ErrUserNotFound = errors.New("user not found")
)

// CreateUser inserts a new account together with its credential hash and
// returns the stored row. Email and phone uniqueness is enforced by the
// schema; violations surface as ErrEmailTaken / ErrPhoneTaken and leave
// existing rows untouched.
func (s *Store) CreateUser(ctx context.Context, email, name, dateOfBirth, phone, passwordHash string) (user.User, error) {
	u := user.User{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		DateOfBirth: dateOfBirth,
		Phone:       phone,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, date_of_birth, phone, created_at, password_hash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.DateOfBirth, u.Phone, u.CreatedAt.UnixNano(), passwordHash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "users.phone") {
				return user.User{}, fmt.Errorf("%w: %s", ErrPhoneTaken, phone)
			}
			return user.User{}, fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return user.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// UserByID fetches a single account.
func (s *Store) UserByID(ctx context.Context, id string) (user.User, error) {
	return s.userBy(ctx, `id = ?`, id)
}

// UserByEmail fetches a single account by its unique email.
func (s *Store) UserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.userBy(ctx, `email = ?`, email)
}

// CredentialHash returns the stored password hash for an email.
func (s *Store) CredentialHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE email = ?`, email,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return hash, nil
}

func (s *Store) userBy(ctx context.Context, where string, arg any) (user.User, error) {
	var (
		u  user.User
		ts int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, date_of_birth, phone, created_at FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.DateOfBirth, &u.Phone, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("%w: %v", ErrUserNotFound, arg)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("failed to read user: %w", err)
	}
	u.CreatedAt = time.Unix(0, ts).UTC()
	return u, nil
}
