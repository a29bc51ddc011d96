package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
	// MaxPage keeps (MaxPage-1)*MaxPageLimit well inside a bigint OFFSET.
	MaxPage = 1_000_000
)

// Scope restricts every read and write to one shop of one tenant. A row that
// exists outside the scope is reported as ErrNotFound.
type Scope struct {
	TenantID int64
	ShopID   int64
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps page and limit to sane values.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if number > MaxPage {
		number = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// Counts reports how many rows a bulk write inserted and how many it
// overwrote.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Scanner is satisfied by pgx.Row and pgx.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one row into a T. Columns arrive in the order given to NewRows.
type ScanFunc[T any] func(Scanner) (T, error)

// Rows is the generic row core shared by every shop-owned table.
type Rows[T any] struct {
	db      DBTX
	table   Table
	columns string
	scan    ScanFunc[T]
}

// NewRows builds a row core over table. It fails with ErrInvalidTable when
// table is not in the allow-list.
func NewRows[T any](db DBTX, table Table, columns []string, scan ScanFunc[T]) (*Rows[T], error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTable, table)
	}
	return &Rows[T]{
		db:      db,
		table:   table,
		columns: strings.Join(columns, ", "),
		scan:    scan,
	}, nil
}

// DB returns the connection the core runs on.
func (r *Rows[T]) DB() DBTX { return r.db }

// Table returns the table the core is bound to.
func (r *Rows[T]) Table() Table { return r.table }

// Columns returns the comma-separated select list.
func (r *Rows[T]) Columns() string { return r.columns }

// ScanOne reads a single row with the core's ScanFunc, mapping pgx.ErrNoRows
// to ErrNotFound.
func (r *Rows[T]) ScanOne(row pgx.Row) (*T, error) {
	v, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning %s row: %w", r.table, err)
	}
	return &v, nil
}

// ScanAll drains rows with the core's ScanFunc. The result is never nil.
func (r *Rows[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", r.table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", r.table, err)
	}
	return out, nil
}

// GetByID returns the row with id inside scope.
func (r *Rows[T]) GetByID(ctx context.Context, id int64, scope Scope) (*T, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND tenant_id = $2 AND shop_id = $3`, r.columns, r.table.Ident())

	return r.ScanOne(r.db.QueryRow(ctx, query, id, scope.TenantID, scope.ShopID))
}

// List returns one page of rows inside scope ordered by id.
func (r *Rows[T]) List(ctx context.Context, scope Scope, page Page) ([]T, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE tenant_id = $1 AND shop_id = $2
		ORDER BY id ASC
		LIMIT $3 OFFSET $4`, r.columns, r.table.Ident())

	rows, err := r.db.Query(ctx, query, scope.TenantID, scope.ShopID, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.table, err)
	}
	return r.ScanAll(rows)
}

// Count returns the number of rows inside scope.
func (r *Rows[T]) Count(ctx context.Context, scope Scope) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND shop_id = $2`, r.table.Ident())

	var n int
	if err := r.db.QueryRow(ctx, query, scope.TenantID, scope.ShopID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", r.table, err)
	}
	return n, nil
}

// Delete removes the row with id inside scope.
func (r *Rows[T]) Delete(ctx context.Context, id int64, scope Scope) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2 AND shop_id = $3`, r.table.Ident())

	result, err := r.db.Exec(ctx, query, id, scope.TenantID, scope.ShopID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrReferenced
		}
		return fmt.Errorf("deleting %s row: %w", r.table, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
