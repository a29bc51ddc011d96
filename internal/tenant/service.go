package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/database"
	"github.com/stockline/stockline/internal/store"
)

// DefaultShopTitle names the shop created with every provisioned tenant when
// the request does not name one.
const DefaultShopTitle = "Main"

// Repos groups the repositories one unit of work touches.
type Repos struct {
	Users       auth.UserRepository
	Keys        auth.KeyRepository
	Tenants     Repository
	Assignments AssignmentRepository
}

// BindRepos returns repositories that all run against db.
func BindRepos(db store.DBTX) Repos {
	return Repos{
		Users:       auth.NewUserRepository(db),
		Keys:        auth.NewKeyRepository(db),
		Tenants:     NewRepository(db),
		Assignments: NewAssignmentRepository(db),
	}
}

// ProvisionRequest describes a tenant to create together with its owner.
type ProvisionRequest struct {
	TenantTitle string
	OwnerEmail  string
	OwnerName   string
	ShopTitle   string
}

// Provisioned is the outcome of a successful Provision. APIKey is the owner's
// raw key and is only available here.
type Provisioned struct {
	Tenant Tenant
	Shop   Shop
	Owner  auth.User
	APIKey string
}

// Service runs the multi-table tenant operations.
type Service struct {
	keys *auth.Service
	inTx func(ctx context.Context, fn func(Repos) error) error
}

// NewService creates a Service whose units of work run in transactions
// started on db.
func NewService(db database.Beginner, keys *auth.Service) *Service {
	return &Service{
		keys: keys,
		inTx: func(ctx context.Context, fn func(Repos) error) error {
			return database.WithTx(ctx, db, func(tx pgx.Tx) error {
				return fn(BindRepos(tx))
			})
		},
	}
}

// Provision finds or creates the owner by email, creates the tenant owned by
// them with one shop and issues the owner an API key. Nothing is stored
// unless every step succeeds.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest, createdBy *int64) (*Provisioned, error) {
	shopTitle := req.ShopTitle
	if shopTitle == "" {
		shopTitle = DefaultShopTitle
	}

	var out Provisioned
	err := s.inTx(ctx, func(r Repos) error {
		owner, err := r.Users.FindOrCreateByEmail(ctx, req.OwnerEmail, req.OwnerName)
		if err != nil {
			return fmt.Errorf("finding owner: %w", err)
		}

		t := &Tenant{Title: req.TenantTitle, OwnerID: &owner.ID, CreatedBy: createdBy}
		if err := r.Tenants.CreateTenant(ctx, t); err != nil {
			return err
		}

		shop := &Shop{TenantID: t.ID, Title: shopTitle}
		if err := r.Tenants.CreateShop(ctx, shop); err != nil {
			return err
		}

		raw, k, err := s.keys.NewKey(owner.ID)
		if err != nil {
			return err
		}
		if err := r.Keys.Create(ctx, k); err != nil {
			return fmt.Errorf("storing owner key: %w", err)
		}

		out = Provisioned{Tenant: *t, Shop: *shop, Owner: *owner, APIKey: raw}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provisioning tenant: %w", err)
	}

	slog.Info("tenant provisioned", "tenantId", out.Tenant.ID, "shopId", out.Shop.ID, "ownerId", out.Owner.ID)
	return &out, nil
}

// BootstrapSystemAdmin creates the first user with a global systemAdmin
// assignment when the users table is empty. Returns the raw API key, which is
// only shown once. If users already exist, returns an empty string.
func (s *Service) BootstrapSystemAdmin(ctx context.Context, email string) (string, error) {
	var rawKey string
	err := s.inTx(ctx, func(r Repos) error {
		count, err := r.Users.CountAll(ctx)
		if err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		if count > 0 {
			return nil
		}

		u, err := r.Users.FindOrCreateByEmail(ctx, email, "system admin")
		if err != nil {
			return fmt.Errorf("creating system admin: %w", err)
		}

		if err := r.Assignments.Create(ctx, &Assignment{UserID: u.ID, Role: access.RoleSystemAdmin}); err != nil {
			return fmt.Errorf("assigning system admin role: %w", err)
		}

		raw, k, err := s.keys.NewKey(u.ID)
		if err != nil {
			return err
		}
		if err := r.Keys.Create(ctx, k); err != nil {
			return fmt.Errorf("storing system admin key: %w", err)
		}
		rawKey = raw
		return nil
	})
	if err != nil {
		return "", err
	}

	if rawKey != "" {
		slog.Info("system admin API key created", "email", email, "key", rawKey)
	}
	return rawKey, nil
}
