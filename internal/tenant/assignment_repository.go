package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/store"
)

// PostgresAssignmentRepository implements AssignmentRepository.
type PostgresAssignmentRepository struct {
	db store.DBTX
}

// NewAssignmentRepository creates a new AssignmentRepository backed by db.
func NewAssignmentRepository(db store.DBTX) AssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

// ListForUser returns every assignment of userID as resolver input.
func (r *PostgresAssignmentRepository) ListForUser(ctx context.Context, userID int64) ([]access.Assignment, error) {
	query := `
		SELECT ro.name, a.tenant_id, a.shop_id
		FROM user_role_assignments a
		JOIN roles ro ON ro.id = a.role_id
		WHERE a.user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing role assignments: %w", err)
	}
	defer rows.Close()

	out := []access.Assignment{}
	for rows.Next() {
		var a access.Assignment
		if err := rows.Scan(&a.Role, &a.TenantID, &a.ShopID); err != nil {
			return nil, fmt.Errorf("scanning role assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role assignments: %w", err)
	}
	return out, nil
}

// ListForTenant returns the tenant- and shop-scoped assignments in tenantID.
func (r *PostgresAssignmentRepository) ListForTenant(ctx context.Context, tenantID int64) ([]Assignment, error) {
	query := `
		SELECT a.id, a.user_id, ro.name, a.tenant_id, a.shop_id, a.created_at
		FROM user_role_assignments a
		JOIN roles ro ON ro.id = a.role_id
		WHERE a.tenant_id = $1
		ORDER BY a.id ASC`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing tenant role assignments: %w", err)
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Role, &a.TenantID, &a.ShopID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning role assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role assignments: %w", err)
	}
	return out, nil
}

// Create inserts a. The role is looked up by name, and a shop-scoped
// assignment must name a shop of its tenant.
func (r *PostgresAssignmentRepository) Create(ctx context.Context, a *Assignment) error {
	if err := validateScope(a); err != nil {
		return err
	}

	query := `
		INSERT INTO user_role_assignments (user_id, role_id, tenant_id, shop_id)
		SELECT $1, ro.id, $3, $4
		FROM roles ro
		WHERE ro.name = $2
		  AND ($4::bigint IS NULL OR EXISTS (SELECT 1 FROM shops s WHERE s.id = $4 AND s.tenant_id = $3))
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, a.UserID, string(a.Role), a.TenantID, a.ShopID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if a.ShopID != nil {
				return ErrInvalidScope
			}
			return ErrUnknownRole
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			if pgErr.ConstraintName == "user_role_assignments_user_id_fkey" {
				return auth.ErrUserNotFound
			}
			return ErrTenantNotFound
		}
		return fmt.Errorf("inserting role assignment: %w", err)
	}
	return nil
}

// Delete removes the assignment with id inside tenantID.
func (r *PostgresAssignmentRepository) Delete(ctx context.Context, id, tenantID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM user_role_assignments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("deleting role assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// validateScope enforces the stored scope rules: shop implies tenant, and
// only systemAdmin is granted globally.
func validateScope(a *Assignment) error {
	if !a.Role.Valid() {
		return ErrUnknownRole
	}
	if a.ShopID != nil && a.TenantID == nil {
		return ErrInvalidScope
	}
	global := a.TenantID == nil
	if global != (a.Role == access.RoleSystemAdmin) {
		return ErrInvalidScope
	}
	return nil
}

// Roles combines tenant ownership and role assignments into the source the
// authenticator resolves identities from.
type Roles struct {
	Tenants     Repository
	Assignments AssignmentRepository
}

// ListForUser delegates to the assignment repository.
func (r Roles) ListForUser(ctx context.Context, userID int64) ([]access.Assignment, error) {
	return r.Assignments.ListForUser(ctx, userID)
}

// OwnedTenantIDs delegates to the tenant repository.
func (r Roles) OwnedTenantIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.Tenants.OwnedTenantIDs(ctx, userID)
}
