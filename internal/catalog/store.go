// Package catalog implements the coded-entity store shared by every catalog
// table: brands, categories, SKUs, marketplaces, warehouses and suppliers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stockline/stockline/internal/codes"
	"github.com/stockline/stockline/internal/store"
)

// ErrDuplicateCode is returned when a code already exists in the shop.
var ErrDuplicateCode = errors.New("code already exists in shop")

// Entity is one row of a coded catalog table.
type Entity struct {
	ID        int64
	TenantID  int64
	ShopID    int64
	Code      string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is the mutable payload of a bulk upsert.
type Item struct {
	Code  string
	Title string
}

var columns = []string{"id", "tenant_id", "shop_id", "code", "title", "created_at", "updated_at"}

func scanEntity(s store.Scanner) (Entity, error) {
	var e Entity
	err := s.Scan(&e.ID, &e.TenantID, &e.ShopID, &e.Code, &e.Title, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Store is the coded capability layered over the generic row core.
type Store struct {
	*store.Rows[Entity]
	normalize codes.Normalizer
}

// NewStore builds the store for a coded table. Tables without codes are
// rejected with store.ErrInvalidTable.
func NewStore(db store.DBTX, table store.Table) (*Store, error) {
	if !table.IsCoded() {
		return nil, fmt.Errorf("%w: %s has no codes", store.ErrInvalidTable, table)
	}

	rows, err := store.NewRows[Entity](db, table, columns, scanEntity)
	if err != nil {
		return nil, err
	}

	normalize := codes.NormalizeCode
	switch table {
	case store.SKUs, store.Warehouses:
		normalize = codes.NormalizeSkuCode
	}

	return &Store{Rows: rows, normalize: normalize}, nil
}

// Normalize applies this table's code rule.
func (s *Store) Normalize(code string) string { return s.normalize(code) }

// Create inserts e. Code is stored as given; callers normalize first.
func (s *Store) Create(ctx context.Context, e *Entity) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, shop_id, code, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`, s.Table().Ident())

	err := s.DB().QueryRow(ctx, query, e.TenantID, e.ShopID, e.Code, e.Title).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("inserting %s row: %w", s.Table(), err)
	}

	return nil
}

// UpdateTitle replaces the title of the row with id inside scope. Code, shop
// and tenant are never written after creation.
func (s *Store) UpdateTitle(ctx context.Context, id int64, scope store.Scope, title string) (*Entity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND shop_id = $4
		RETURNING %s`, s.Table().Ident(), s.Columns())

	return s.ScanOne(s.DB().QueryRow(ctx, query, title, id, scope.TenantID, scope.ShopID))
}

// FindByCodeAndShop returns the row with code in shopID.
func (s *Store) FindByCodeAndShop(ctx context.Context, code string, shopID int64) (*Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE shop_id = $1 AND code = $2`, s.Columns(), s.Table().Ident())

	return s.ScanOne(s.DB().QueryRow(ctx, query, shopID, code))
}

// FindCodesByShopID returns the subset of candidates that already exist in
// shopID.
func (s *Store) FindCodesByShopID(ctx context.Context, shopID int64, candidates []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(candidates))
	if len(candidates) == 0 {
		return found, nil
	}

	query := fmt.Sprintf(`SELECT code FROM %s WHERE shop_id = $1 AND code = ANY($2)`, s.Table().Ident())

	rows, err := s.DB().Query(ctx, query, shopID, candidates)
	if err != nil {
		return nil, fmt.Errorf("finding %s codes: %w", s.Table(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning %s code: %w", s.Table(), err)
		}
		found[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s codes: %w", s.Table(), err)
	}

	return found, nil
}

// FindOrCreateByCode maps every code to a row id in shopID, inserting missing
// codes with the code as title. It returns the number of rows it inserted.
// Empty codes are ignored. Repeating the call with the same codes inserts
// nothing and returns the same mapping.
func (s *Store) FindOrCreateByCode(ctx context.Context, tenantID, shopID int64, codeList []string) (map[string]int64, int, error) {
	wanted := dedupe(codeList)
	ids := make(map[string]int64, len(wanted))
	if len(wanted) == 0 {
		return ids, 0, nil
	}

	if err := s.selectIDs(ctx, shopID, wanted, ids); err != nil {
		return nil, 0, err
	}

	missing := missingCodes(wanted, ids)
	if len(missing) == 0 {
		return ids, 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, shop_id, code, title)
		SELECT $1, $2, c, c FROM unnest($3::text[]) AS c
		ON CONFLICT (shop_id, code) DO NOTHING
		RETURNING id, code`, s.Table().Ident())

	rows, err := s.DB().Query(ctx, query, tenantID, shopID, missing)
	if err != nil {
		return nil, 0, fmt.Errorf("inserting missing %s codes: %w", s.Table(), err)
	}
	created, err := collectIDs(rows, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("reading inserted %s codes: %w", s.Table(), err)
	}

	// Codes inserted by a concurrent writer between the select and the insert.
	if lost := missingCodes(missing, ids); len(lost) > 0 {
		if err := s.selectIDs(ctx, shopID, lost, ids); err != nil {
			return nil, 0, err
		}
	}

	return ids, created, nil
}

// BulkUpsert inserts items into shopID, overwriting the title of codes that
// already exist. When a code appears more than once the last item wins.
// Created and updated are classified by a read before the write, so under
// concurrent writers to the same codes the split may be off while the stored
// rows stay correct.
func (s *Store) BulkUpsert(ctx context.Context, tenantID, shopID int64, items []Item) (store.Counts, error) {
	if len(items) == 0 {
		return store.Counts{}, nil
	}

	codeList, titles := collapse(items)

	existing, err := s.FindCodesByShopID(ctx, shopID, codeList)
	if err != nil {
		return store.Counts{}, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, shop_id, code, title)
		SELECT $1, $2, u.code, u.title FROM unnest($3::text[], $4::text[]) AS u(code, title)
		ON CONFLICT (shop_id, code) DO UPDATE
		SET title = EXCLUDED.title, updated_at = NOW()`, s.Table().Ident())

	if _, err := s.DB().Exec(ctx, query, tenantID, shopID, codeList, titles); err != nil {
		return store.Counts{}, fmt.Errorf("upserting %s rows: %w", s.Table(), err)
	}

	return store.Counts{
		Created: len(codeList) - len(existing),
		Updated: len(existing),
	}, nil
}

func (s *Store) selectIDs(ctx context.Context, shopID int64, codeList []string, into map[string]int64) error {
	query := fmt.Sprintf(`SELECT id, code FROM %s WHERE shop_id = $1 AND code = ANY($2)`, s.Table().Ident())

	rows, err := s.DB().Query(ctx, query, shopID, codeList)
	if err != nil {
		return fmt.Errorf("selecting %s ids: %w", s.Table(), err)
	}
	if _, err := collectIDs(rows, into); err != nil {
		return fmt.Errorf("reading %s ids: %w", s.Table(), err)
	}
	return nil
}

func collectIDs(rows pgx.Rows, into map[string]int64) (int, error) {
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id   int64
			code string
		)
		if err := rows.Scan(&id, &code); err != nil {
			return n, err
		}
		into[code] = id
		n++
	}
	return n, rows.Err()
}

func dedupe(codeList []string) []string {
	seen := make(map[string]struct{}, len(codeList))
	out := make([]string, 0, len(codeList))
	for _, c := range codeList {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func missingCodes(codeList []string, ids map[string]int64) []string {
	var out []string
	for _, c := range codeList {
		if _, ok := ids[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// collapse keeps the first position of each code and the title of its last
// occurrence.
func collapse(items []Item) (codeList, titles []string) {
	pos := make(map[string]int, len(items))
	for _, it := range items {
		if i, ok := pos[it.Code]; ok {
			titles[i] = it.Title
			continue
		}
		pos[it.Code] = len(codeList)
		codeList = append(codeList, it.Code)
		titles = append(titles, it.Title)
	}
	return codeList, titles
}
