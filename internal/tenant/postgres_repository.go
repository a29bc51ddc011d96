package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockline/stockline/internal/store"
)

// PostgresRepository implements Repository over a pool or transaction.
type PostgresRepository struct {
	db store.DBTX
}

// NewRepository creates a new Repository backed by db.
func NewRepository(db store.DBTX) Repository {
	return &PostgresRepository{db: db}
}

// CreateTenant inserts a new tenant record.
func (r *PostgresRepository) CreateTenant(ctx context.Context, t *Tenant) error {
	query := `
		INSERT INTO tenants (title, owner_id, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, t.Title, t.OwnerID, t.CreatedBy).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

// GetTenant retrieves a single tenant by id.
func (r *PostgresRepository) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	query := `
		SELECT id, title, owner_id, created_by, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	var t Tenant
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Title, &t.OwnerID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	return &t, nil
}

// ListTenants retrieves the tenants with the given ids ordered by id.
func (r *PostgresRepository) ListTenants(ctx context.Context, ids []int64) ([]Tenant, error) {
	if len(ids) == 0 {
		return []Tenant{}, nil
	}

	query := `
		SELECT id, title, owner_id, created_by, created_at, updated_at
		FROM tenants
		WHERE id = ANY($1)
		ORDER BY id ASC`

	return r.listTenants(ctx, query, ids)
}

// ListAllTenants retrieves every tenant ordered by id.
func (r *PostgresRepository) ListAllTenants(ctx context.Context) ([]Tenant, error) {
	query := `
		SELECT id, title, owner_id, created_by, created_at, updated_at
		FROM tenants
		ORDER BY id ASC`

	return r.listTenants(ctx, query)
}

func (r *PostgresRepository) listTenants(ctx context.Context, query string, args ...any) ([]Tenant, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Title, &t.OwnerID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}

	return tenants, nil
}

// OwnedTenantIDs returns the ids of tenants whose owner is userID.
func (r *PostgresRepository) OwnedTenantIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants WHERE owner_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing owned tenants: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning owned tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating owned tenant ids: %w", err)
	}
	return ids, nil
}

// CreateShop inserts a new shop record.
func (r *PostgresRepository) CreateShop(ctx context.Context, s *Shop) error {
	query := `
		INSERT INTO shops (tenant_id, title)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, s.TenantID, s.Title).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrTenantNotFound
		}
		return fmt.Errorf("inserting shop: %w", err)
	}
	return nil
}

// GetShop retrieves a shop by id within tenantID.
func (r *PostgresRepository) GetShop(ctx context.Context, id, tenantID int64) (*Shop, error) {
	query := `
		SELECT id, tenant_id, title, created_at, updated_at
		FROM shops
		WHERE id = $1 AND tenant_id = $2`

	var s Shop
	err := r.db.QueryRow(ctx, query, id, tenantID).Scan(&s.ID, &s.TenantID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("querying shop: %w", err)
	}
	return &s, nil
}

// ListShops retrieves the shops of tenantID ordered by id.
func (r *PostgresRepository) ListShops(ctx context.Context, tenantID int64) ([]Shop, error) {
	query := `
		SELECT id, tenant_id, title, created_at, updated_at
		FROM shops
		WHERE tenant_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing shops: %w", err)
	}
	defer rows.Close()

	shops := []Shop{}
	for rows.Next() {
		var s Shop
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning shop row: %w", err)
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shop rows: %w", err)
	}

	return shops, nil
}

// ShopBelongsTo reports whether shopID is a shop of tenantID.
func (r *PostgresRepository) ShopBelongsTo(ctx context.Context, shopID, tenantID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1 AND tenant_id = $2)`, shopID, tenantID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking shop tenant: %w", err)
	}
	return ok, nil
}
