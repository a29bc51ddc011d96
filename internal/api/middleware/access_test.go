package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/access"
	"github.com/stockline/stockline/internal/api/middleware"
	"github.com/stockline/stockline/internal/auth"
	"github.com/stockline/stockline/internal/store"
)

// shops maps shop ID to tenant ID.
type mockShops map[int64]int64

func (m mockShops) ShopBelongsTo(_ context.Context, shopID, tenantID int64) (bool, error) {
	t, ok := m[shopID]
	return ok && t == tenantID, nil
}

type failingShops struct{}

func (failingShops) ShopBelongsTo(context.Context, int64, int64) (bool, error) {
	return false, errors.New("db down")
}

// countingShops records how often the directory is consulted.
type countingShops struct {
	mockShops
	calls atomic.Int32
}

func (c *countingShops) ShopBelongsTo(ctx context.Context, shopID, tenantID int64) (bool, error) {
	c.calls.Add(1)
	return c.mockShops.ShopBelongsTo(ctx, shopID, tenantID)
}

func ptr(v int64) *int64 { return &v }

func withIdentity(r *http.Request, id *access.Identity) *http.Request {
	p := &auth.Principal{User: auth.User{ID: 1}, Identity: id}
	return r.WithContext(middleware.WithPrincipal(r.Context(), p))
}

func TestRequireAccess(t *testing.T) {
	t.Parallel()

	shops := mockShops{10: 1, 11: 1, 20: 2}
	viewer := access.Resolve([]access.Assignment{
		{Role: access.RoleViewer, TenantID: ptr(1), ShopID: ptr(10)},
	}, nil)
	editor := access.Resolve([]access.Assignment{
		{Role: access.RoleEditor, TenantID: ptr(1), ShopID: ptr(10)},
	}, nil)
	owner := access.Resolve(nil, []int64{1})
	admin := access.Resolve([]access.Assignment{{Role: access.RoleSystemAdmin}}, nil)

	tests := []struct {
		name     string
		level    access.Level
		identity *access.Identity
		query    string
		wantCode int
	}{
		{name: "viewer reads own shop", level: access.LevelRead, identity: viewer, query: "?tenant_id=1&shop_id=10", wantCode: http.StatusOK},
		{name: "viewer cannot write", level: access.LevelWrite, identity: viewer, query: "?tenant_id=1&shop_id=10", wantCode: http.StatusForbidden},
		{name: "viewer other shop", level: access.LevelRead, identity: viewer, query: "?tenant_id=1&shop_id=11", wantCode: http.StatusForbidden},
		{name: "editor writes", level: access.LevelWrite, identity: editor, query: "?tenant_id=1&shop_id=10", wantCode: http.StatusOK},
		{name: "owner writes any shop", level: access.LevelWrite, identity: owner, query: "?tenant_id=1&shop_id=11", wantCode: http.StatusOK},
		{name: "owner foreign tenant", level: access.LevelRead, identity: owner, query: "?tenant_id=2&shop_id=20", wantCode: http.StatusForbidden},
		{name: "admin anywhere", level: access.LevelWrite, identity: admin, query: "?tenant_id=2&shop_id=20", wantCode: http.StatusOK},
		{name: "shop outside tenant", level: access.LevelRead, identity: admin, query: "?tenant_id=1&shop_id=20", wantCode: http.StatusForbidden},
		{name: "missing shop", level: access.LevelRead, identity: owner, query: "?tenant_id=1", wantCode: http.StatusBadRequest},
		{name: "non-numeric tenant", level: access.LevelRead, identity: owner, query: "?tenant_id=abc&shop_id=10", wantCode: http.StatusBadRequest},
		{name: "none skips checks", level: access.LevelNone, identity: viewer, query: "", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.RequireAccess(tt.level, shops)(okHandler())
			req := withIdentity(httptest.NewRequest(http.MethodGet, "/catalog/skus"+tt.query, nil), tt.identity)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequireAccess_StoresScope(t *testing.T) {
	t.Parallel()

	var scope store.Scope
	var ok bool
	handler := middleware.RequireAccess(access.LevelRead, mockShops{10: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok = middleware.GetScope(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/?tenant_id=1&shop_id=10", nil), access.Resolve(nil, []int64{1}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	assert.Equal(t, store.Scope{TenantID: 1, ShopID: 10}, scope)
}

func TestRequireAccess_LookupFailure(t *testing.T) {
	t.Parallel()

	handler := middleware.RequireAccess(access.LevelRead, failingShops{})(okHandler())
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/?tenant_id=1&shop_id=10", nil), access.Resolve(nil, []int64{1}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireAccess_OutsiderCannotMapShops(t *testing.T) {
	t.Parallel()

	shops := &countingShops{mockShops: mockShops{10: 1, 20: 2}}
	outsider := access.Resolve(nil, []int64{2})
	handler := middleware.RequireAccess(access.LevelRead, shops)(okHandler())

	bodies := make([]map[string]interface{}, 0, 2)
	for _, query := range []string{"?tenant_id=1&shop_id=10", "?tenant_id=1&shop_id=99"} {
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/catalog/skus"+query, nil), outsider)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusForbidden, w.Code, query)
		bodies = append(bodies, parseErrorResponse(t, w))
	}

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, "Insufficient permissions", bodies[0]["message"])
	assert.Zero(t, shops.calls.Load())
}

func TestRequireAccess_ShopOutsideTenantMessage(t *testing.T) {
	t.Parallel()

	admin := access.Resolve([]access.Assignment{{Role: access.RoleSystemAdmin}}, nil)
	handler := middleware.RequireAccess(access.LevelRead, mockShops{20: 2})(okHandler())
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/?tenant_id=1&shop_id=20", nil), admin)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", parseErrorResponse(t, w)["message"])
}

func TestRequireAccess_NoPrincipal(t *testing.T) {
	t.Parallel()

	handler := middleware.RequireAccess(access.LevelRead, mockShops{})(okHandler())
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?tenant_id=1&shop_id=10", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSystemAdmin(t *testing.T) {
	t.Parallel()

	handler := middleware.RequireSystemAdmin()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodPost, "/tenants", nil), access.Resolve(nil, []int64{1})))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", parseErrorResponse(t, w)["code"])

	w = httptest.NewRecorder()
	admin := access.Resolve([]access.Assignment{{Role: access.RoleSystemAdmin}}, nil)
	handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodPost, "/tenants", nil), admin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireTenantAdmin(t *testing.T) {
	t.Parallel()

	tenantAdmin := access.Resolve([]access.Assignment{
		{Role: access.RoleTenantAdmin, TenantID: ptr(1)},
	}, nil)
	shopEditor := access.Resolve([]access.Assignment{
		{Role: access.RoleEditor, TenantID: ptr(1), ShopID: ptr(10)},
	}, nil)

	tests := []struct {
		name     string
		identity *access.Identity
		query    string
		wantCode int
	}{
		{name: "tenant admin", identity: tenantAdmin, query: "?tenant_id=1", wantCode: http.StatusOK},
		{name: "owner", identity: access.Resolve(nil, []int64{1}), query: "?tenant_id=1", wantCode: http.StatusOK},
		{name: "other tenant", identity: tenantAdmin, query: "?tenant_id=2", wantCode: http.StatusForbidden},
		{name: "shop editor", identity: shopEditor, query: "?tenant_id=1", wantCode: http.StatusForbidden},
		{name: "missing tenant", identity: tenantAdmin, query: "", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.RequireTenantAdmin()(okHandler())
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodGet, "/shops"+tt.query, nil), tt.identity))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
