package sales_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/database/dbtest"
	"github.com/stockline/stockline/internal/sales"
	"github.com/stockline/stockline/internal/store"
)

type fixture struct {
	repo          *sales.Repository
	tenantID      int64
	shopID        int64
	skuID         int64
	marketplaceID int64
}

func setup(t *testing.T) fixture {
	t.Helper()

	pool := dbtest.Open(t)
	tenantID, shopID := dbtest.Shop(t, pool)
	ctx := context.Background()

	skus, err := catalog.NewStore(pool, store.SKUs)
	require.NoError(t, err)
	skuIDs, _, err := skus.FindOrCreateByCode(ctx, tenantID, shopID, []string{"SKU-1"})
	require.NoError(t, err)

	mps, err := catalog.NewStore(pool, store.Marketplaces)
	require.NoError(t, err)
	mpIDs, _, err := mps.FindOrCreateByCode(ctx, tenantID, shopID, []string{"ozon"})
	require.NoError(t, err)

	repo, err := sales.NewRepository(pool)
	require.NoError(t, err)

	return fixture{
		repo:          repo,
		tenantID:      tenantID,
		shopID:        shopID,
		skuID:         skuIDs["SKU-1"],
		marketplaceID: mpIDs["ozon"],
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordKey(t *testing.T) {
	rec := sales.Record{SKUID: 1, MarketplaceID: 2, Period: time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)}
	assert.Equal(t, sales.Key{SKUID: 1, MarketplaceID: 2, Period: "2024-03-01"}, rec.Key())
}

func TestBulkUpsert_Empty(t *testing.T) {
	repo, err := sales.NewRepository(nil)
	require.NoError(t, err)

	counts, err := repo.BulkUpsert(context.Background(), 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, counts)
}

func TestBulkUpsert_RejectsOutOfRangeValues(t *testing.T) {
	repo, err := sales.NewRepository(nil)
	require.NoError(t, err)

	period := day(2024, 3, 1)
	tests := []struct {
		name string
		rec  sales.Record
	}{
		{name: "quantity above int32", rec: sales.Record{Period: period, Quantity: 3_000_000_000}},
		{name: "quantity below int32", rec: sales.Record{Period: period, Quantity: -3_000_000_000}},
		{name: "revenue too large", rec: sales.Record{Period: period, Revenue: sales.MaxRevenue}},
		{name: "revenue infinite", rec: sales.Record{Period: period, Revenue: math.Inf(1)}},
		{name: "revenue NaN", rec: sales.Record{Period: period, Revenue: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.BulkUpsert(context.Background(), 1, 1, []sales.Record{tt.rec})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestBulkUpsert_CreateThenUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	scope := store.Scope{TenantID: f.tenantID, ShopID: f.shopID}

	records := []sales.Record{
		{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 1, 1), Quantity: 3, Revenue: 29.97},
		{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 2, 1), Quantity: 1, Revenue: 9.99},
	}

	counts, err := f.repo.BulkUpsert(ctx, f.tenantID, f.shopID, records)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 2}, counts)

	records[0].Quantity = 5
	records[0].Revenue = 49.95
	records = append(records, sales.Record{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 3, 1), Quantity: 2, Revenue: 19.98})

	counts, err = f.repo.BulkUpsert(ctx, f.tenantID, f.shopID, records)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 1, Updated: 2}, counts)

	list, err := f.repo.List(ctx, scope, store.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 5, list[0].Quantity)
	assert.InDelta(t, 49.95, list[0].Revenue, 0.001)
	assert.Equal(t, "2024-01-01", list[0].Period.Format(sales.PeriodLayout))
}

func TestBulkUpsert_DuplicateKeyLastWins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	counts, err := f.repo.BulkUpsert(ctx, f.tenantID, f.shopID, []sales.Record{
		{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 1, 1), Quantity: 1},
		{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 1, 1), Quantity: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Created: 1}, counts)

	n, err := f.repo.Count(ctx, store.Scope{TenantID: f.tenantID, ShopID: f.shopID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExistingKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.repo.BulkUpsert(ctx, f.tenantID, f.shopID, []sales.Record{
		{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: day(2024, 5, 1), Quantity: 1},
	})
	require.NoError(t, err)

	stored := sales.Key{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: "2024-05-01"}
	missing := sales.Key{SKUID: f.skuID, MarketplaceID: f.marketplaceID, Period: "2024-06-01"}

	found, err := f.repo.ExistingKeys(ctx, f.shopID, []sales.Key{stored, missing})
	require.NoError(t, err)
	assert.Equal(t, map[sales.Key]struct{}{stored: {}}, found)
}
