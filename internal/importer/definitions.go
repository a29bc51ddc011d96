package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/sales"
	"github.com/stockline/stockline/internal/store"
)

// CatalogRow is one decoded row of a coded catalog table.
type CatalogRow struct {
	Code  string `json:"code" validate:"required,max=255"`
	Title string `json:"title" validate:"required,max=1024"`
}

// CatalogStore is the part of *catalog.Store a catalog import writes through.
type CatalogStore interface {
	Normalize(code string) string
	BulkUpsert(ctx context.Context, tenantID, shopID int64, items []catalog.Item) (store.Counts, error)
}

// CatalogDefinition imports {code, title} rows into s. Codes are normalized by
// the table's rule and an empty title defaults to the code.
func CatalogDefinition(entity string, s CatalogStore) Definition[CatalogRow] {
	return Definition[CatalogRow]{
		Entity: entity,
		Decode: func(row Row) (CatalogRow, error) {
			code := s.Normalize(row["code"])
			title := row["title"]
			if title == "" {
				title = code
			}
			return CatalogRow{Code: code, Title: title}, nil
		},
		Key: func(row Row) string { return row["code"] },
		Upsert: func(ctx context.Context, tenantID, shopID int64, rows []CatalogRow) (store.Counts, error) {
			items := make([]catalog.Item, len(rows))
			for i, r := range rows {
				items[i] = catalog.Item{Code: r.Code, Title: r.Title}
			}
			return s.BulkUpsert(ctx, tenantID, shopID, items)
		},
	}
}

// SalesRow is one decoded sales-history row. The ids are filled in by
// reference resolution.
type SalesRow struct {
	SKU         string    `json:"sku" validate:"required,max=255"`
	Marketplace string    `json:"marketplace" validate:"required,max=255"`
	Period      time.Time `json:"period"`
	Quantity    int       `json:"quantity"`
	Revenue     float64   `json:"revenue" validate:"gte=0,lt=1000000000000"`

	skuID         int64
	marketplaceID int64
}

// SalesStore is the part of *sales.Repository a sales import writes through.
type SalesStore interface {
	BulkUpsert(ctx context.Context, tenantID, shopID int64, records []sales.Record) (store.Counts, error)
}

var periodLayouts = []string{sales.PeriodLayout, "2006-01", "02.01.2006"}

// ParsePeriod accepts YYYY-MM-DD, YYYY-MM (first day of the month) and
// DD.MM.YYYY.
func ParsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("period %q must be YYYY-MM-DD, YYYY-MM or DD.MM.YYYY", s)
}

// SalesDefinition imports {sku, marketplace, period, quantity, revenue} rows.
// Unknown SKUs and marketplaces are created in the shop with their code as
// title.
func SalesDefinition(repo SalesStore) Definition[SalesRow] {
	return Definition[SalesRow]{
		Entity: store.SalesHistory.String(),
		Decode: decodeSalesRow,
		References: []Reference[SalesRow]{
			{
				Field: "sku",
				Table: store.SKUs,
				Code:  func(r *SalesRow) string { return r.SKU },
				Set:   func(r *SalesRow, id int64) { r.skuID = id },
			},
			{
				Field: "marketplace",
				Table: store.Marketplaces,
				Code:  func(r *SalesRow) string { return r.Marketplace },
				Set:   func(r *SalesRow, id int64) { r.marketplaceID = id },
			},
		},
		Upsert: func(ctx context.Context, tenantID, shopID int64, rows []SalesRow) (store.Counts, error) {
			records := make([]sales.Record, len(rows))
			for i, r := range rows {
				records[i] = sales.Record{
					SKUID:         r.skuID,
					MarketplaceID: r.marketplaceID,
					Period:        r.Period,
					Quantity:      r.Quantity,
					Revenue:       r.Revenue,
				}
			}
			return repo.BulkUpsert(ctx, tenantID, shopID, records)
		},
	}
}

func decodeSalesRow(row Row) (SalesRow, error) {
	r := SalesRow{SKU: row["sku"], Marketplace: row["marketplace"]}

	if row["period"] == "" {
		return r, errors.New("period is required")
	}
	period, err := ParsePeriod(row["period"])
	if err != nil {
		return r, err
	}
	r.Period = period

	if q := row["quantity"]; q != "" {
		n, err := strconv.ParseInt(q, 10, 32)
		if err != nil {
			return r, fmt.Errorf("quantity %q must be an integer between %d and %d", q, math.MinInt32, math.MaxInt32)
		}
		r.Quantity = int(n)
	}

	if v := row["revenue"]; v != "" {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return r, fmt.Errorf("revenue %q is not a number", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return r, fmt.Errorf("revenue %q is not a finite number", v)
		}
		// NUMERIC(14,2) rounds to cents; bound the rounded value.
		r.Revenue = math.Round(f*100) / 100
	}

	return r, nil
}
