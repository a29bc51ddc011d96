package store_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/store"
)

type row struct{ ID int64 }

func scanRow(s store.Scanner) (row, error) {
	var r row
	err := s.Scan(&r.ID)
	return r, err
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		name  string
		want  store.Table
		ident string
		coded bool
	}{
		{"brands", store.Brands, "brands", true},
		{"categories", store.Categories, "categories", true},
		{"skus", store.SKUs, "skus", true},
		{"marketplaces", store.Marketplaces, "marketplaces", true},
		{"warehouses", store.Warehouses, "warehouses", true},
		{"suppliers", store.Suppliers, "suppliers", true},
		{"sales-history", store.SalesHistory, "sales_history", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ParseTable(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ident, got.Ident())
			assert.Equal(t, tt.coded, got.IsCoded())
			assert.Equal(t, tt.name, got.String())
		})
	}
}

func TestParseTable_Rejected(t *testing.T) {
	for _, name := range []string{"", "users", "api_keys", "brands; DROP TABLE users", "Brands"} {
		_, err := store.ParseTable(name)
		assert.ErrorIs(t, err, store.ErrInvalidTable, name)
	}
}

func TestCodedTables(t *testing.T) {
	for _, tbl := range store.CodedTables {
		assert.True(t, tbl.IsCoded(), tbl.String())
	}
	assert.NotContains(t, store.CodedTables, store.SalesHistory)
}

func TestNewRows_InvalidTable(t *testing.T) {
	_, err := store.NewRows[row](nil, store.Table(99), []string{"id"}, scanRow)
	assert.ErrorIs(t, err, store.ErrInvalidTable)

	_, err = store.NewRows[row](nil, store.Table(0), []string{"id"}, scanRow)
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}

func TestNewRows_Valid(t *testing.T) {
	rows, err := store.NewRows[row](nil, store.Brands, []string{"id", "code"}, scanRow)
	require.NoError(t, err)
	assert.Equal(t, store.Brands, rows.Table())
	assert.Equal(t, "id, code", rows.Columns())
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name       string
		number     int
		limit      int
		wantNumber int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, 1, store.DefaultPageLimit, 0},
		{"negative", -3, -1, 1, store.DefaultPageLimit, 0},
		{"second page", 2, 20, 2, 20, 20},
		{"limit capped", 3, 10000, 3, store.MaxPageLimit, 2 * store.MaxPageLimit},
		{"page capped", math.MaxInt, store.MaxPageLimit, store.MaxPage, store.MaxPageLimit, (store.MaxPage - 1) * store.MaxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := store.NewPage(tt.number, tt.limit)
			assert.Equal(t, tt.wantNumber, p.Number)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}
