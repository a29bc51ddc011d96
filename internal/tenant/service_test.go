package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/auth"
)

// --- Mocks ---

type mockUsers struct {
	auth.UserRepository
	count   int
	created []string
}

func (m *mockUsers) CountAll(_ context.Context) (int, error) {
	return m.count, nil
}

func (m *mockUsers) FindOrCreateByEmail(_ context.Context, email, name string) (*auth.User, error) {
	m.created = append(m.created, email)
	return &auth.User{ID: int64(len(m.created)), Email: email, Name: name}, nil
}

type mockKeys struct {
	auth.KeyRepository
	stored []auth.APIKey
	err    error
}

func (m *mockKeys) Create(_ context.Context, k *auth.APIKey) error {
	if m.err != nil {
		return m.err
	}
	k.ID = int64(len(m.stored) + 1)
	m.stored = append(m.stored, *k)
	return nil
}

type mockTenants struct {
	Repository
	tenants []Tenant
	shops   []Shop
	shopErr error
}

func (m *mockTenants) CreateTenant(_ context.Context, t *Tenant) error {
	t.ID = int64(len(m.tenants) + 100)
	m.tenants = append(m.tenants, *t)
	return nil
}

func (m *mockTenants) CreateShop(_ context.Context, s *Shop) error {
	if m.shopErr != nil {
		return m.shopErr
	}
	s.ID = int64(len(m.shops) + 200)
	m.shops = append(m.shops, *s)
	return nil
}

type mockAssignments struct {
	AssignmentRepository
	created []Assignment
}

func (m *mockAssignments) Create(_ context.Context, a *Assignment) error {
	if err := validateScope(a); err != nil {
		return err
	}
	a.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *a)
	return nil
}

type fixture struct {
	svc         *Service
	users       *mockUsers
	keys        *mockKeys
	tenants     *mockTenants
	assignments *mockAssignments
	committed   bool
}

func newFixture() *fixture {
	f := &fixture{
		users:       &mockUsers{},
		keys:        &mockKeys{},
		tenants:     &mockTenants{},
		assignments: &mockAssignments{},
	}
	f.svc = &Service{
		keys: auth.NewService(nil, nil, nil, 4, 0),
		inTx: func(_ context.Context, fn func(Repos) error) error {
			err := fn(Repos{Users: f.users, Keys: f.keys, Tenants: f.tenants, Assignments: f.assignments})
			f.committed = err == nil
			return err
		},
	}
	return f
}

// --- Provision Tests ---

func TestProvision_CreatesTenantShopAndKey(t *testing.T) {
	f := newFixture()
	creator := int64(9)

	out, err := f.svc.Provision(context.Background(), ProvisionRequest{
		TenantTitle: "Acme",
		OwnerEmail:  "owner@acme.test",
		OwnerName:   "Owner",
	}, &creator)
	require.NoError(t, err)

	assert.True(t, f.committed)
	assert.Equal(t, "Acme", out.Tenant.Title)
	require.NotNil(t, out.Tenant.OwnerID)
	assert.Equal(t, out.Owner.ID, *out.Tenant.OwnerID)
	assert.Equal(t, &creator, out.Tenant.CreatedBy)
	assert.Equal(t, DefaultShopTitle, out.Shop.Title)
	assert.Equal(t, out.Tenant.ID, out.Shop.TenantID)
	assert.NotEmpty(t, out.APIKey)
	require.Len(t, f.keys.stored, 1)
	assert.Equal(t, out.Owner.ID, f.keys.stored[0].UserID)
}

func TestProvision_NamedShop(t *testing.T) {
	f := newFixture()

	out, err := f.svc.Provision(context.Background(), ProvisionRequest{
		TenantTitle: "Acme",
		OwnerEmail:  "owner@acme.test",
		ShopTitle:   "Ozon",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ozon", out.Shop.Title)
	assert.Nil(t, out.Tenant.CreatedBy)
}

func TestProvision_FailureRollsBack(t *testing.T) {
	f := newFixture()
	f.tenants.shopErr = errors.New("insert failed")

	out, err := f.svc.Provision(context.Background(), ProvisionRequest{TenantTitle: "Acme", OwnerEmail: "o@acme.test"}, nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.False(t, f.committed)
	assert.Empty(t, f.keys.stored)
}

// --- BootstrapSystemAdmin Tests ---

func TestBootstrapSystemAdmin_EmptyDatabase(t *testing.T) {
	f := newFixture()

	raw, err := f.svc.BootstrapSystemAdmin(context.Background(), "admin@stockline.local")
	require.NoError(t, err)

	assert.NotEmpty(t, raw)
	assert.Equal(t, []string{"admin@stockline.local"}, f.users.created)
	require.Len(t, f.assignments.created, 1)
	a := f.assignments.created[0]
	assert.Equal(t, access.RoleSystemAdmin, a.Role)
	assert.Nil(t, a.TenantID)
	assert.Nil(t, a.ShopID)
	require.Len(t, f.keys.stored, 1)
}

func TestBootstrapSystemAdmin_UsersExist(t *testing.T) {
	f := newFixture()
	f.users.count = 3

	raw, err := f.svc.BootstrapSystemAdmin(context.Background(), "admin@stockline.local")
	require.NoError(t, err)

	assert.Empty(t, raw)
	assert.Empty(t, f.users.created)
	assert.Empty(t, f.assignments.created)
	assert.Empty(t, f.keys.stored)
}

func TestBootstrapSystemAdmin_KeyStoreFailure(t *testing.T) {
	f := newFixture()
	f.keys.err = errors.New("disk full")

	raw, err := f.svc.BootstrapSystemAdmin(context.Background(), "admin@stockline.local")
	require.Error(t, err)
	assert.Empty(t, raw)
	assert.False(t, f.committed)
}

// --- validateScope Tests ---

func TestValidateScope(t *testing.T) {
	tenant := int64(1)
	shop := int64(2)

	tests := []struct {
		name string
		a    Assignment
		want error
	}{
		{"global system admin", Assignment{Role: access.RoleSystemAdmin}, nil},
		{"tenant editor", Assignment{Role: access.RoleEditor, TenantID: &tenant}, nil},
		{"shop viewer", Assignment{Role: access.RoleViewer, TenantID: &tenant, ShopID: &shop}, nil},
		{"global editor", Assignment{Role: access.RoleEditor}, ErrInvalidScope},
		{"tenant-scoped system admin", Assignment{Role: access.RoleSystemAdmin, TenantID: &tenant}, ErrInvalidScope},
		{"shop without tenant", Assignment{Role: access.RoleViewer, ShopID: &shop}, ErrInvalidScope},
		{"unknown role", Assignment{Role: "tenantOwner", TenantID: &tenant}, ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			err := validateScope(&a)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
