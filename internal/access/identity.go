// Package access turns a user's raw role assignments and tenant ownership into
// an effective permission view.
package access

import (
	"encoding/json"
	"errors"
	"sort"
)

// ErrForbidden is returned when the caller lacks the required access.
var ErrForbidden = errors.New("forbidden")

// Role is a stored role name. Tenant ownership is derived from
// tenants.owner_id and is never stored as a role.
type Role string

const (
	RoleSystemAdmin Role = "systemAdmin"
	RoleTenantAdmin Role = "tenantAdmin"
	RoleEditor      Role = "editor"
	RoleViewer      Role = "viewer"
)

// Valid reports whether r is one of the stored roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleTenantAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Assignment is one user_role_assignments row with the role name joined in.
// ShopID set implies TenantID set; both nil means a global role.
type Assignment struct {
	Role     Role
	TenantID *int64
	ShopID   *int64
}

// Level is the access a route requires.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	default:
		return "none"
	}
}

type roleSet map[Role]struct{}

func (s roleSet) has(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s roleSet) sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Identity is the resolved permission view of one user. It is built by
// Resolve and never modified afterwards.
type Identity struct {
	systemAdmin bool
	owned       map[int64]struct{}
	tenantIDs   map[int64]struct{}
	tenantRoles map[int64]roleSet
	shopRoles   map[int64]roleSet
}

// Resolve computes an Identity from a user's assignments and the ids of the
// tenants the user owns. Role sets are unions over all rows for a scope.
func Resolve(assignments []Assignment, ownedTenantIDs []int64) *Identity {
	id := &Identity{
		owned:       make(map[int64]struct{}, len(ownedTenantIDs)),
		tenantIDs:   make(map[int64]struct{}, len(ownedTenantIDs)),
		tenantRoles: make(map[int64]roleSet),
		shopRoles:   make(map[int64]roleSet),
	}

	for _, t := range ownedTenantIDs {
		id.owned[t] = struct{}{}
		id.tenantIDs[t] = struct{}{}
	}

	for _, a := range assignments {
		switch {
		case a.TenantID == nil && a.ShopID == nil:
			if a.Role == RoleSystemAdmin {
				id.systemAdmin = true
			}
		case a.ShopID != nil:
			addRole(id.shopRoles, *a.ShopID, a.Role)
			if a.TenantID != nil {
				id.tenantIDs[*a.TenantID] = struct{}{}
			}
		default:
			addRole(id.tenantRoles, *a.TenantID, a.Role)
			id.tenantIDs[*a.TenantID] = struct{}{}
		}
	}

	return id
}

func addRole(m map[int64]roleSet, key int64, r Role) {
	set, ok := m[key]
	if !ok {
		set = make(roleSet)
		m[key] = set
	}
	set[r] = struct{}{}
}

// IsSystemAdmin reports whether the user holds a global systemAdmin role.
func (id *Identity) IsSystemAdmin() bool { return id.systemAdmin }

// TenantIDs returns the sorted ids of every tenant the user owns or holds a
// role in.
func (id *Identity) TenantIDs() []int64 { return sortedKeys(id.tenantIDs) }

// OwnedTenantIDs returns the sorted ids of tenants the user owns.
func (id *Identity) OwnedTenantIDs() []int64 { return sortedKeys(id.owned) }

// HasTenant reports whether tenantID is in TenantIDs.
func (id *Identity) HasTenant(tenantID int64) bool {
	_, ok := id.tenantIDs[tenantID]
	return ok
}

// TenantRoles returns the tenant-scoped roles held in tenantID.
func (id *Identity) TenantRoles(tenantID int64) []Role { return id.tenantRoles[tenantID].sorted() }

// ShopRoles returns the shop-scoped roles held in shopID.
func (id *Identity) ShopRoles(shopID int64) []Role { return id.shopRoles[shopID].sorted() }

// HasTenantAccess reports whether the user owns tenantID or is its tenantAdmin.
func (id *Identity) HasTenantAccess(tenantID int64) bool {
	if _, ok := id.owned[tenantID]; ok {
		return true
	}
	return id.tenantRoles[tenantID].has(RoleTenantAdmin)
}

// HasReadAccess reports whether the user may read shopID of tenantID.
func (id *Identity) HasReadAccess(shopID, tenantID int64) bool {
	if id.HasTenantAccess(tenantID) {
		return true
	}
	roles := id.shopRoles[shopID]
	return roles.has(RoleViewer) || roles.has(RoleEditor)
}

// HasWriteAccess reports whether the user may write shopID of tenantID.
func (id *Identity) HasWriteAccess(shopID, tenantID int64) bool {
	if id.HasTenantAccess(tenantID) {
		return true
	}
	return id.shopRoles[shopID].has(RoleEditor)
}

// ValidateTenantAdminAccess returns ErrForbidden unless the user is a system
// admin or has tenant access to tenantID.
func (id *Identity) ValidateTenantAdminAccess(tenantID int64) error {
	if id.systemAdmin || id.HasTenantAccess(tenantID) {
		return nil
	}
	return ErrForbidden
}

// Authorize checks a route requirement against a shop/tenant pair.
// System admins pass every check.
func (id *Identity) Authorize(level Level, shopID, tenantID int64) error {
	if level == LevelNone || id.systemAdmin {
		return nil
	}
	if !id.HasTenant(tenantID) {
		return ErrForbidden
	}

	switch level {
	case LevelRead:
		if !id.HasReadAccess(shopID, tenantID) {
			return ErrForbidden
		}
	case LevelWrite:
		if !id.HasWriteAccess(shopID, tenantID) {
			return ErrForbidden
		}
	}
	return nil
}

type tenantRolesView struct {
	TenantID int64  `json:"tenantId"`
	Roles    []Role `json:"roles"`
}

type shopRolesView struct {
	ShopID int64  `json:"shopId"`
	Roles  []Role `json:"roles"`
}

type identityView struct {
	IsSystemAdmin  bool              `json:"isSystemAdmin"`
	TenantIDs      []int64           `json:"tenantIds"`
	OwnedTenantIDs []int64           `json:"ownedTenantIds"`
	TenantRoles    []tenantRolesView `json:"tenantRoles"`
	ShopRoles      []shopRolesView   `json:"shopRoles"`
}

// MarshalJSON renders the identity for API responses.
func (id *Identity) MarshalJSON() ([]byte, error) {
	view := identityView{
		IsSystemAdmin:  id.systemAdmin,
		TenantIDs:      id.TenantIDs(),
		OwnedTenantIDs: id.OwnedTenantIDs(),
		TenantRoles:    make([]tenantRolesView, 0, len(id.tenantRoles)),
		ShopRoles:      make([]shopRolesView, 0, len(id.shopRoles)),
	}
	for _, t := range sortedKeys(id.tenantRoles) {
		view.TenantRoles = append(view.TenantRoles, tenantRolesView{TenantID: t, Roles: id.tenantRoles[t].sorted()})
	}
	for _, s := range sortedKeys(id.shopRoles) {
		view.ShopRoles = append(view.ShopRoles, shopRolesView{ShopID: s, Roles: id.shopRoles[s].sorted()})
	}
	return json.Marshal(view)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
