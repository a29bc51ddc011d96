// Package sales stores per-period sales history rows that reference SKUs and
// marketplaces by id.
package sales

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/stockline/stockline/internal/store"
)

// PeriodLayout is the canonical text form of a period.
const PeriodLayout = "2006-01-02"

// MaxRevenue is the exclusive upper bound of the NUMERIC(14,2) revenue column.
const MaxRevenue = 1e12

// Record is one row of the sales_history table.
type Record struct {
	ID            int64
	TenantID      int64
	ShopID        int64
	SKUID         int64
	MarketplaceID int64
	Period        time.Time
	Quantity      int
	Revenue       float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key is the business key of a record within one shop.
type Key struct {
	SKUID         int64
	MarketplaceID int64
	Period        string
}

// Key returns the business key of rec.
func (rec Record) Key() Key {
	return Key{SKUID: rec.SKUID, MarketplaceID: rec.MarketplaceID, Period: rec.Period.Format(PeriodLayout)}
}

var columns = []string{
	"id", "tenant_id", "shop_id", "sku_id", "marketplace_id", "period",
	"quantity", "revenue", "created_at", "updated_at",
}

func (rec Record) checkRange() error {
	if rec.Quantity < math.MinInt32 || rec.Quantity > math.MaxInt32 {
		return fmt.Errorf("sales record %s: quantity %d out of range", rec.Key().Period, rec.Quantity)
	}
	if math.IsNaN(rec.Revenue) || math.IsInf(rec.Revenue, 0) || math.Abs(rec.Revenue) >= MaxRevenue {
		return fmt.Errorf("sales record %s: revenue %v out of range", rec.Key().Period, rec.Revenue)
	}
	return nil
}

func scanRecord(s store.Scanner) (Record, error) {
	var rec Record
	err := s.Scan(
		&rec.ID, &rec.TenantID, &rec.ShopID, &rec.SKUID, &rec.MarketplaceID, &rec.Period,
		&rec.Quantity, &rec.Revenue, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// Repository reads and writes sales history.
type Repository struct {
	*store.Rows[Record]
}

// NewRepository creates a Repository over db.
func NewRepository(db store.DBTX) (*Repository, error) {
	rows, err := store.NewRows[Record](db, store.SalesHistory, columns, scanRecord)
	if err != nil {
		return nil, err
	}
	return &Repository{Rows: rows}, nil
}

// ExistingKeys returns the subset of keys already stored for shopID.
func (r *Repository) ExistingKeys(ctx context.Context, shopID int64, keys []Key) (map[Key]struct{}, error) {
	found := make(map[Key]struct{}, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	skuIDs, marketplaceIDs, periods, err := splitKeys(keys)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT sku_id, marketplace_id, period
		FROM sales_history
		WHERE shop_id = $1
		  AND (sku_id, marketplace_id, period) IN (
		      SELECT * FROM unnest($2::bigint[], $3::bigint[], $4::date[])
		  )`

	rows, err := r.DB().Query(ctx, query, shopID, skuIDs, marketplaceIDs, periods)
	if err != nil {
		return nil, fmt.Errorf("finding existing sales keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k      Key
			period time.Time
		)
		if err := rows.Scan(&k.SKUID, &k.MarketplaceID, &period); err != nil {
			return nil, fmt.Errorf("scanning sales key: %w", err)
		}
		k.Period = period.Format(PeriodLayout)
		found[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales keys: %w", err)
	}

	return found, nil
}

// BulkUpsert writes records for shopID in one statement. Records sharing a
// key collapse to the last one; quantity and revenue of existing rows are
// overwritten.
func (r *Repository) BulkUpsert(ctx context.Context, tenantID, shopID int64, records []Record) (store.Counts, error) {
	if len(records) == 0 {
		return store.Counts{}, nil
	}

	for _, rec := range records {
		if err := rec.checkRange(); err != nil {
			return store.Counts{}, err
		}
	}

	records = collapse(records)

	keys := make([]Key, len(records))
	for i, rec := range records {
		keys[i] = rec.Key()
	}

	existing, err := r.ExistingKeys(ctx, shopID, keys)
	if err != nil {
		return store.Counts{}, err
	}

	skuIDs, marketplaceIDs, periods, err := splitKeys(keys)
	if err != nil {
		return store.Counts{}, err
	}
	quantities := make([]int32, len(records))
	revenues := make([]float64, len(records))
	for i, rec := range records {
		quantities[i] = int32(rec.Quantity)
		revenues[i] = rec.Revenue
	}

	query := `
		INSERT INTO sales_history (tenant_id, shop_id, sku_id, marketplace_id, period, quantity, revenue)
		SELECT $1, $2, u.sku_id, u.marketplace_id, u.period, u.quantity, u.revenue
		FROM unnest($3::bigint[], $4::bigint[], $5::date[], $6::int[], $7::numeric[])
		     AS u(sku_id, marketplace_id, period, quantity, revenue)
		ON CONFLICT (shop_id, sku_id, period, marketplace_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, revenue = EXCLUDED.revenue, updated_at = NOW()`

	_, err = r.DB().Exec(ctx, query, tenantID, shopID, skuIDs, marketplaceIDs, periods, quantities, revenues)
	if err != nil {
		return store.Counts{}, fmt.Errorf("upserting sales history: %w", err)
	}

	return store.Counts{
		Created: len(records) - len(existing),
		Updated: len(existing),
	}, nil
}

func splitKeys(keys []Key) (skuIDs, marketplaceIDs []int64, periods []time.Time, err error) {
	skuIDs = make([]int64, len(keys))
	marketplaceIDs = make([]int64, len(keys))
	periods = make([]time.Time, len(keys))
	for i, k := range keys {
		skuIDs[i] = k.SKUID
		marketplaceIDs[i] = k.MarketplaceID
		periods[i], err = time.Parse(PeriodLayout, k.Period)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing period %q: %w", k.Period, err)
		}
	}
	return skuIDs, marketplaceIDs, periods, nil
}

func collapse(records []Record) []Record {
	pos := make(map[Key]int, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		k := rec.Key()
		if i, ok := pos[k]; ok {
			out[i] = rec
			continue
		}
		pos[k] = len(out)
		out = append(out, rec)
	}
	return out
}
