package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockline/stockline/internal/store"
)

// PostgresUserRepository implements UserRepository.
type PostgresUserRepository struct {
	db store.DBTX
}

// NewUserRepository creates a UserRepository over a pool or transaction.
func NewUserRepository(db store.DBTX) UserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, u.Email, u.Name).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by id.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a single user by email.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// FindOrCreateByEmail returns the user with email, creating it with name when
// absent.
func (r *PostgresUserRepository) FindOrCreateByEmail(ctx context.Context, email, name string) (*User, error) {
	query := `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, created_at`

	var u User
	if err := r.db.QueryRow(ctx, query, email, name).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &u, nil
}

// CountAll returns the total number of users in the table.
func (r *PostgresUserRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// PostgresKeyRepository implements KeyRepository.
type PostgresKeyRepository struct {
	db store.DBTX
}

// NewKeyRepository creates a KeyRepository over a pool or transaction.
func NewKeyRepository(db store.DBTX) KeyRepository {
	return &PostgresKeyRepository{db: db}
}

// Create inserts a new API key record.
func (r *PostgresKeyRepository) Create(ctx context.Context, k *APIKey) error {
	query := `
		INSERT INTO api_keys (user_id, prefix, key_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, k.UserID, k.Prefix, k.KeyHash, k.ExpiresAt).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

// FindActiveByPrefix returns non-expired keys matching the given prefix.
func (r *PostgresKeyRepository) FindActiveByPrefix(ctx context.Context, prefix string) ([]APIKey, error) {
	query := `
		SELECT id, user_id, prefix, key_hash, expires_at, last_used_at, created_at
		FROM api_keys
		WHERE prefix = $1 AND (expires_at IS NULL OR expires_at > NOW())`

	rows, err := r.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("finding api keys by prefix: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		err := rows.Scan(&k.ID, &k.UserID, &k.Prefix, &k.KeyHash, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}

	return keys, nil
}

// Touch sets last_used_at to now.
func (r *PostgresKeyRepository) Touch(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touching api key: %w", err)
	}
	return nil
}
