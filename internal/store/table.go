// Package store holds the table allow-list and the generic, scope-filtered row
// core that every shop-owned table is built on.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a row does not exist within the caller's scope.
var ErrNotFound = errors.New("record not found")

// ErrReferenced is returned when a row cannot be deleted because other rows
// still point at it.
var ErrReferenced = errors.New("record is still referenced")

// ErrInvalidTable is returned when a store is built over a table outside the
// allow-list.
var ErrInvalidTable = errors.New("table is not allowed")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Table identifies one shop-owned table.
type Table int

const (
	Brands Table = iota + 1
	Categories
	SKUs
	Marketplaces
	Warehouses
	Suppliers
	SalesHistory
)

type tableInfo struct {
	name  string
	ident string
	coded bool
}

var tables = map[Table]tableInfo{
	Brands:       {name: "brands", ident: "brands", coded: true},
	Categories:   {name: "categories", ident: "categories", coded: true},
	SKUs:         {name: "skus", ident: "skus", coded: true},
	Marketplaces: {name: "marketplaces", ident: "marketplaces", coded: true},
	Warehouses:   {name: "warehouses", ident: "warehouses", coded: true},
	Suppliers:    {name: "suppliers", ident: "suppliers", coded: true},
	SalesHistory: {name: "sales-history", ident: "sales_history"},
}

// CodedTables lists every table whose rows are identified by a code, in a
// stable order.
var CodedTables = []Table{Brands, Categories, SKUs, Marketplaces, Warehouses, Suppliers}

// ParseTable maps a URL name such as "brands" to its Table.
func ParseTable(name string) (Table, error) {
	for t, info := range tables {
		if info.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTable, name)
}

// Valid reports whether t is in the allow-list.
func (t Table) Valid() bool {
	_, ok := tables[t]
	return ok
}

// Ident returns the SQL identifier of t. It is empty for tables outside the
// allow-list.
func (t Table) Ident() string { return tables[t].ident }

// IsCoded reports whether rows of t carry a unique per-shop code.
func (t Table) IsCoded() bool { return tables[t].coded }

func (t Table) String() string {
	if info, ok := tables[t]; ok {
		return info.name
	}
	return fmt.Sprintf("table(%d)", int(t))
}
