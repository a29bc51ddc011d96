package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/logging"
)

// ErrInvalidKey is returned when the provided API key does not match any
// active key.
var ErrInvalidKey = errors.New("invalid or expired API key")

const (
	keyPrefix = "sk_"
	prefixLen = 12
)

// RoleSource loads the raw facts the access resolver works from.
type RoleSource interface {
	ListForUser(ctx context.Context, userID int64) ([]access.Assignment, error)
	OwnedTenantIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service provides authentication operations.
type Service struct {
	users      UserRepository
	keys       KeyRepository
	roles      RoleSource
	bcryptCost int
	keyTTL     time.Duration
}

// NewService creates a new auth Service. A zero keyTTL issues keys that never
// expire.
func NewService(users UserRepository, keys KeyRepository, roles RoleSource, bcryptCost int, keyTTL time.Duration) *Service {
	return &Service{
		users:      users,
		keys:       keys,
		roles:      roles,
		bcryptCost: bcryptCost,
		keyTTL:     keyTTL,
	}
}

// GenerateKey creates a new API key. Returns the raw key, its lookup prefix
// and the bcrypt hash. The raw key is: 32 random bytes -> base64url -> prepend
// "sk_".
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = keyPrefix + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:prefixLen]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// NewKey generates a key for userID and returns the raw key with the row to
// store. The caller persists the row, possibly inside a transaction.
func (s *Service) NewKey(userID int64) (string, *APIKey, error) {
	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return "", nil, err
	}

	k := &APIKey{UserID: userID, Prefix: prefix, KeyHash: hash}
	if s.keyTTL > 0 {
		expires := time.Now().Add(s.keyTTL).UTC()
		k.ExpiresAt = &expires
	}
	return rawKey, k, nil
}

// IssueKey generates and stores a key for userID, returning the raw key.
func (s *Service) IssueKey(ctx context.Context, userID int64) (string, error) {
	rawKey, k, err := s.NewKey(userID)
	if err != nil {
		return "", err
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return "", fmt.Errorf("storing api key: %w", err)
	}
	return rawKey, nil
}

// Authenticate resolves a raw API key to a Principal. It looks up non-expired
// keys by prefix, bcrypt-compares each one, records the use and resolves the
// user's effective access.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*Principal, error) {
	if len(rawKey) < prefixLen {
		return nil, ErrInvalidKey
	}

	candidates, err := s.keys.FindActiveByPrefix(ctx, rawKey[:prefixLen])
	if err != nil {
		return nil, fmt.Errorf("finding api keys by prefix: %w", err)
	}

	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(rawKey)) != nil {
			continue
		}

		if err := s.keys.Touch(ctx, k.ID); err != nil {
			logging.FromContext(ctx).Warn("failed to record api key use", "error", err, "keyId", k.ID)
		}

		return s.buildPrincipal(ctx, k)
	}

	return nil, ErrInvalidKey
}

// Resolve loads the assignments and owned tenants of userID and runs the
// access resolver over them.
func (s *Service) Resolve(ctx context.Context, userID int64) (*access.Identity, error) {
	assignments, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading role assignments: %w", err)
	}

	owned, err := s.roles.OwnedTenantIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading owned tenants: %w", err)
	}

	return access.Resolve(assignments, owned), nil
}

func (s *Service) buildPrincipal(ctx context.Context, k APIKey) (*Principal, error) {
	u, err := s.users.GetByID(ctx, k.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("fetching user for key: %w", err)
	}

	identity, err := s.Resolve(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &Principal{User: *u, KeyID: k.ID, Identity: identity}, nil
}
