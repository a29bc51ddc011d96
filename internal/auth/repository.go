package auth

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	FindOrCreateByEmail(ctx context.Context, email, name string) (*User, error)
	CountAll(ctx context.Context) (int, error)
}

// KeyRepository provides operations on the api_keys table.
type KeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	FindActiveByPrefix(ctx context.Context, prefix string) ([]APIKey, error)
	Touch(ctx context.Context, id int64) error
}
