package auth

import (
	"time"

	"github.com/stockline/stockline/internal/access"
)

// User represents a row in the users table.
type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

// APIKey represents a row in the api_keys table. The raw key is never stored.
type APIKey struct {
	ID         int64
	UserID     int64
	Prefix     string
	KeyHash    string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Principal is stored in the request context after authentication and is not
// modified afterwards.
type Principal struct {
	User     User
	KeyID    int64
	Identity *access.Identity
}
