// Package tenant manages tenants, their shops and the role assignments that
// grant users access to them.
package tenant

import (
	"context"
	"errors"

	"github.com/stockline/stockline/internal/access"
)

// ErrTenantNotFound is returned when a tenant record is not found.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrShopNotFound is returned when a shop record is not found within its tenant.
var ErrShopNotFound = errors.New("shop not found")

// ErrAssignmentNotFound is returned when a role assignment is not found.
var ErrAssignmentNotFound = errors.New("role assignment not found")

// ErrUnknownRole is returned when an assignment names a role that is not seeded.
var ErrUnknownRole = errors.New("unknown role")

// ErrInvalidScope is returned when an assignment's scope does not fit its role
// or its shop does not belong to its tenant.
var ErrInvalidScope = errors.New("invalid assignment scope")

// Repository provides operations on the tenants and shops tables.
type Repository interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context, ids []int64) ([]Tenant, error)
	ListAllTenants(ctx context.Context) ([]Tenant, error)
	OwnedTenantIDs(ctx context.Context, userID int64) ([]int64, error)

	CreateShop(ctx context.Context, s *Shop) error
	GetShop(ctx context.Context, id, tenantID int64) (*Shop, error)
	ListShops(ctx context.Context, tenantID int64) ([]Shop, error)
	ShopBelongsTo(ctx context.Context, shopID, tenantID int64) (bool, error)
}

// AssignmentRepository provides operations on user_role_assignments.
type AssignmentRepository interface {
	ListForUser(ctx context.Context, userID int64) ([]access.Assignment, error)
	ListForTenant(ctx context.Context, tenantID int64) ([]Assignment, error)
	Create(ctx context.Context, a *Assignment) error
	Delete(ctx context.Context, id, tenantID int64) error
}
