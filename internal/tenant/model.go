package tenant

import (
	"time"

	"github.com/stockline/stockline/internal/access"
)

// Tenant represents a row in the tenants table.
type Tenant struct {
	ID        int64
	Title     string
	OwnerID   *int64
	CreatedBy *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shop represents a row in the shops table.
type Shop struct {
	ID        int64
	TenantID  int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment represents a row in user_role_assignments with the role name
// joined in.
type Assignment struct {
	ID        int64
	UserID    int64
	Role      access.Role
	TenantID  *int64
	ShopID    *int64
	CreatedAt time.Time
}

// Access returns the resolver input for a.
func (a Assignment) Access() access.Assignment {
	return access.Assignment{Role: a.Role, TenantID: a.TenantID, ShopID: a.ShopID}
}
