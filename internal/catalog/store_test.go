package catalog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/database/dbtest"
	"github.com/stockline/stockline/internal/store"
)

func setupStore(t *testing.T, table store.Table) (*catalog.Store, int64, int64) {
	t.Helper()

	pool := dbtest.Open(t)
	tenantID, shopID := dbtest.Shop(t, pool)

	stores, err := catalog.NewStores(pool)
	require.NoError(t, err)
	s, err := stores.Get(table)
	require.NoError(t, err)

	return s, tenantID, shopID
}

// --- Construction (no database) ---

func TestNewStore_RejectsUncodedTable(t *testing.T) {
	_, err := catalog.NewStore(nil, store.SalesHistory)
	assert.ErrorIs(t, err, store.ErrInvalidTable)

	_, err = catalog.NewStore(nil, store.Table(42))
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}

func TestNewStore_NormalizerPerTable(t *testing.T) {
	tests := []struct {
		table store.Table
		in    string
		want  string
	}{
		{store.Brands, "Новый бренд", "novyyBrend"},
		{store.Marketplaces, "NEWMP", "newmp"},
		{store.Categories, "home_garden", "homeGarden"},
		{store.Suppliers, "ООО Поставщик", "oooPostavshchik"},
		{store.SKUs, "ART 01-X", "ART01-X"},
		{store.Warehouses, "Склад_1", "Sklad_1"},
	}

	for _, tt := range tests {
		t.Run(tt.table.String(), func(t *testing.T) {
			s, err := catalog.NewStore(nil, tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Normalize(tt.in))
		})
	}
}

func TestStores_Get(t *testing.T) {
	stores, err := catalog.NewStores(nil)
	require.NoError(t, err)

	for _, tbl := range store.CodedTables {
		s, err := stores.Get(tbl)
		require.NoError(t, err)
		assert.Equal(t, tbl, s.Table())
	}

	_, err = stores.Get(store.SalesHistory)
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}

// --- Create / Get ---

func TestCreate_DuplicateCode(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Brands)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &catalog.Entity{TenantID: tenantID, ShopID: shopID, Code: "acme", Title: "Acme"}))

	err := s.Create(ctx, &catalog.Entity{TenantID: tenantID, ShopID: shopID, Code: "acme", Title: "Other"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateCode)
}

func TestGetByID_OtherTenantIsNotFound(t *testing.T) {
	pool := dbtest.Open(t)
	tenantA, shopA := dbtest.Shop(t, pool)
	tenantB, shopB := dbtest.Shop(t, pool)

	s, err := catalog.NewStore(pool, store.Brands)
	require.NoError(t, err)
	ctx := context.Background()

	e := &catalog.Entity{TenantID: tenantA, ShopID: shopA, Code: "acme", Title: "Acme"}
	require.NoError(t, s.Create(ctx, e))

	got, err := s.GetByID(ctx, e.ID, store.Scope{TenantID: tenantA, ShopID: shopA})
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Title)

	_, err = s.GetByID(ctx, e.ID, store.Scope{TenantID: tenantB, ShopID: shopB})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Delete(ctx, e.ID, store.Scope{TenantID: tenantB, ShopID: shopB})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateTitle(ctx, e.ID, store.Scope{TenantID: tenantB, ShopID: shopB}, "stolen")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTitle_KeepsCode(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Categories)
	ctx := context.Background()
	scope := store.Scope{TenantID: tenantID, ShopID: shopID}

	e := &catalog.Entity{TenantID: tenantID, ShopID: shopID, Code: "shoes", Title: "Shoes"}
	require.NoError(t, s.Create(ctx, e))

	updated, err := s.UpdateTitle(ctx, e.ID, scope, "Footwear")
	require.NoError(t, err)
	assert.Equal(t, "shoes", updated.Code)
	assert.Equal(t, "Footwear", updated.Title)
	assert.Equal(t, shopID, updated.ShopID)
}

func TestListCountDelete(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Suppliers)
	ctx := context.Background()
	scope := store.Scope{TenantID: tenantID, ShopID: shopID}

	_, err := s.BulkUpsert(ctx, tenantID, shopID, []catalog.Item{{Code: "a", Title: "A"}, {Code: "b", Title: "B"}, {Code: "c", Title: "C"}})
	require.NoError(t, err)

	n, err := s.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := s.List(ctx, scope, store.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].Code)

	require.NoError(t, s.Delete(ctx, page[0].ID, scope))
	n, err = s.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// --- FindOrCreateByCode ---

func TestFindOrCreateByCode_Idempotent(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Marketplaces)
	ctx := context.Background()

	first, created, err := s.FindOrCreateByCode(ctx, tenantID, shopID, []string{"ozon", "wb", "ozon", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Len(t, first, 2)

	second, created, err := s.FindOrCreateByCode(ctx, tenantID, shopID, []string{"wb", "ozon"})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, first, second)

	e, err := s.FindByCodeAndShop(ctx, "ozon", shopID)
	require.NoError(t, err)
	assert.Equal(t, "ozon", e.Title, "auto-created rows use the code as title")
}

func TestFindOrCreateByCode_MixedExisting(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Brands)
	ctx := context.Background()

	e := &catalog.Entity{TenantID: tenantID, ShopID: shopID, Code: "acme", Title: "Acme Corp"}
	require.NoError(t, s.Create(ctx, e))

	ids, created, err := s.FindOrCreateByCode(ctx, tenantID, shopID, []string{"acme", "globex"})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, e.ID, ids["acme"])
	assert.NotZero(t, ids["globex"])

	found, err := s.FindByCodeAndShop(ctx, "acme", shopID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", found.Title, "existing title untouched")
}

func TestFindOrCreateByCode_Concurrent(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.SKUs)
	ctx := context.Background()
	codeList := []string{"SKU-1", "SKU-2", "SKU-3"}

	var wg sync.WaitGroup
	results := make([]map[string]int64, 4)
	totals := make([]int, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], totals[i], errs[i] = s.FindOrCreateByCode(ctx, tenantID, shopID, codeList)
		}(i)
	}
	wg.Wait()

	sum := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
		assert.Len(t, results[i], 3)
		sum += totals[i]
	}
	assert.Equal(t, 3, sum, "each code is inserted exactly once")
}

// --- BulkUpsert ---

func TestBulkUpsert_Empty(t *testing.T) {
	s, err := catalog.NewStore(nil, store.Brands)
	require.NoError(t, err)

	counts, err := s.BulkUpsert(context.Background(), 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, counts)
}

func TestBulkUpsert_SecondCallUpdates(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Brands)
	ctx := context.Background()

	counts, err := s.BulkUpsert(ctx, tenantID, shopID, []catalog.Item{{Code: "mavyko", Title: "Мавико"}})
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 1, Updated: 0}, counts)

	counts, err = s.BulkUpsert(ctx, tenantID, shopID, []catalog.Item{{Code: "mavyko", Title: "Mavyko"}})
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 0, Updated: 1}, counts)

	e, err := s.FindByCodeAndShop(ctx, "mavyko", shopID)
	require.NoError(t, err)
	assert.Equal(t, "Mavyko", e.Title)
}

func TestBulkUpsert_CountsMatchDistinctItems(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Categories)
	ctx := context.Background()

	_, err := s.BulkUpsert(ctx, tenantID, shopID, []catalog.Item{{Code: "a", Title: "A"}, {Code: "b", Title: "B"}})
	require.NoError(t, err)

	items := []catalog.Item{{Code: "a", Title: "A2"}, {Code: "b", Title: "B2"}, {Code: "c", Title: "C"}, {Code: "d", Title: "D"}, {Code: "e", Title: "E"}}
	counts, err := s.BulkUpsert(ctx, tenantID, shopID, items)
	require.NoError(t, err)
	assert.Equal(t, len(items), counts.Created+counts.Updated)
	assert.Equal(t, 3, counts.Created)
	assert.Equal(t, 2, counts.Updated)
}

func TestBulkUpsert_DuplicateCodeLastWins(t *testing.T) {
	s, tenantID, shopID := setupStore(t, store.Brands)
	ctx := context.Background()

	counts, err := s.BulkUpsert(ctx, tenantID, shopID, []catalog.Item{
		{Code: "acme", Title: "first"},
		{Code: "acme", Title: "last"},
	})
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 1}, counts)

	e, err := s.FindByCodeAndShop(ctx, "acme", shopID)
	require.NoError(t, err)
	assert.Equal(t, "last", e.Title)
}

func TestFindCodesByShopID_ScopedToShop(t *testing.T) {
	pool := dbtest.Open(t)
	tenantID, shopA := dbtest.Shop(t, pool)
	_, shopB := dbtest.Shop(t, pool)
	ctx := context.Background()

	s, err := catalog.NewStore(pool, store.Warehouses)
	require.NoError(t, err)

	_, err = s.BulkUpsert(ctx, tenantID, shopA, []catalog.Item{{Code: "WH-1", Title: "Main"}})
	require.NoError(t, err)

	found, err := s.FindCodesByShopID(ctx, shopA, []string{"WH-1", "WH-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"WH-1": {}}, found)

	found, err = s.FindCodesByShopID(ctx, shopB, []string{"WH-1"})
	require.NoError(t, err)
	assert.Empty(t, found)
}
