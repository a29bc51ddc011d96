package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/stockline/stockline/internal/catalog"
	"github.com/stockline/stockline/internal/logging"
	"github.com/stockline/stockline/internal/store"
)

// Resolver maps codes of one coded table to row ids, creating missing rows.
// *catalog.Store satisfies it.
type Resolver interface {
	Normalize(code string) string
	FindOrCreateByCode(ctx context.Context, tenantID, shopID int64, codes []string) (map[string]int64, int, error)
}

// Resolvers returns the Resolver of a coded table.
type Resolvers func(table store.Table) (Resolver, error)

// StoreResolvers resolves references through the catalog stores.
func StoreResolvers(stores *catalog.Stores) Resolvers {
	return func(table store.Table) (Resolver, error) {
		s, err := stores.Get(table)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Reference is a field of T that names a row of another coded table by code.
type Reference[T any] struct {
	Field string
	Table store.Table
	Code  func(item *T) string
	Set   func(item *T, id int64)
}

// Definition describes how rows of one entity are decoded, linked and stored.
type Definition[T any] struct {
	Entity     string
	Decode     func(row Row) (T, error)
	Key        func(row Row) string
	References []Reference[T]
	Upsert     func(ctx context.Context, tenantID, shopID int64, items []T) (store.Counts, error)
}

// Result is the outcome of one import batch.
type Result struct {
	Created     int
	Updated     int
	Errors      map[string]string
	AutoCreated map[string]int
}

func newResult() *Result {
	return &Result{Errors: map[string]string{}, AutoCreated: map[string]int{}}
}

// MarshalJSON flattens AutoCreated into "<table>_created" keys next to the
// totals.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"created": r.Created,
		"updated": r.Updated,
		"errors":  r.Errors,
	}
	for table, n := range r.AutoCreated {
		out[table+"_created"] = n
	}
	return json.Marshal(out)
}

func (r *Result) fail(key, msg string) {
	if _, taken := r.Errors[key]; taken {
		for n := 2; ; n++ {
			alt := key + "#" + strconv.Itoa(n)
			if _, taken := r.Errors[alt]; !taken {
				key = alt
				break
			}
		}
	}
	r.Errors[key] = msg
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

type pending[T any] struct {
	key  string
	item T
}

// Run imports rows with def into shopID. Invalid or unresolvable rows are
// recorded in Result.Errors and skipped. An error is returned only when a
// store call fails.
func Run[T any](ctx context.Context, def Definition[T], resolve Resolvers, tenantID, shopID int64, rows []Row) (*Result, error) {
	res := newResult()
	valid := make([]pending[T], 0, len(rows))

	for i, row := range rows {
		key := rowKey(def, i, row)

		item, err := def.Decode(row)
		if err == nil {
			err = validate.Struct(&item)
		}
		if err != nil {
			res.fail(key, describe(err))
			continue
		}
		valid = append(valid, pending[T]{key: key, item: item})
	}

	for _, ref := range def.References {
		var err error
		valid, err = link(ctx, ref, resolve, tenantID, shopID, valid, res)
		if err != nil {
			return nil, err
		}
	}

	items := make([]T, len(valid))
	for i, p := range valid {
		items[i] = p.item
	}

	counts, err := def.Upsert(ctx, tenantID, shopID, items)
	if err != nil {
		return nil, fmt.Errorf("upserting %s: %w", def.Entity, err)
	}
	res.Created = counts.Created
	res.Updated = counts.Updated

	logging.FromContext(ctx).Info("import finished",
		"entity", def.Entity,
		"shopId", shopID,
		"rows", len(rows),
		"created", res.Created,
		"updated", res.Updated,
		"failed", len(res.Errors),
	)

	return res, nil
}

// link resolves ref on every pending item, auto-creating missing codes, and
// returns the items that resolved.
func link[T any](ctx context.Context, ref Reference[T], resolve Resolvers, tenantID, shopID int64, items []pending[T], res *Result) ([]pending[T], error) {
	r, err := resolve(ref.Table)
	if err != nil {
		return nil, fmt.Errorf("resolving %s references: %w", ref.Field, err)
	}

	codeList := make([]string, 0, len(items))
	for i := range items {
		codeList = append(codeList, r.Normalize(ref.Code(&items[i].item)))
	}

	ids, created, err := r.FindOrCreateByCode(ctx, tenantID, shopID, codeList)
	if err != nil {
		return nil, fmt.Errorf("creating %s codes: %w", ref.Table, err)
	}
	res.AutoCreated[ref.Table.String()] += created

	m := newMatcher(ids)
	kept := items[:0]
	for i := range items {
		raw := ref.Code(&items[i].item)
		id, ok := m.match(codeList[i], raw)
		if !ok {
			res.fail(items[i].key, fmt.Sprintf("%s %q could not be resolved", ref.Field, raw))
			continue
		}
		ref.Set(&items[i].item, id)
		kept = append(kept, items[i])
	}
	return kept, nil
}

// matcher looks codes up with a fixed fallback order: exact normalized code,
// then case-insensitive, then case-insensitive with every non-alphanumeric
// character removed. The fallbacks compare against the raw input code and are
// kept for compatibility with historic imports.
type matcher struct {
	ids  map[string]int64
	keys []string
}

func newMatcher(ids map[string]int64) *matcher {
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &matcher{ids: ids, keys: keys}
}

func (m *matcher) match(normalized, raw string) (int64, bool) {
	if id, ok := m.ids[normalized]; ok && normalized != "" {
		return id, true
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, k := range m.keys {
		if strings.EqualFold(k, raw) {
			return m.ids[k], true
		}
	}

	stripped := alnumLower(raw)
	if stripped == "" {
		return 0, false
	}
	for _, k := range m.keys {
		if alnumLower(k) == stripped {
			return m.ids[k], true
		}
	}
	return 0, false
}

func alnumLower(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func rowKey[T any](def Definition[T], i int, row Row) string {
	if def.Key != nil {
		if k := def.Key(row); k != "" {
			return k
		}
	}
	return "row " + strconv.Itoa(i+1)
}

// describe renders a decode or validation error as one line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "lt":
			msgs = append(msgs, fmt.Sprintf("%s must be less than %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
