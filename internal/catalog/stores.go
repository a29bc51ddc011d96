package catalog

import (
	"fmt"

	"github.com/stockline/stockline/internal/store"
)

// Stores holds one Store per coded table. It is built once at startup.
type Stores struct {
	byTable map[store.Table]*Store
}

// NewStores builds a Store for every coded table over db.
func NewStores(db store.DBTX) (*Stores, error) {
	s := &Stores{byTable: make(map[store.Table]*Store, len(store.CodedTables))}
	for _, t := range store.CodedTables {
		st, err := NewStore(db, t)
		if err != nil {
			return nil, fmt.Errorf("building %s store: %w", t, err)
		}
		s.byTable[t] = st
	}
	return s, nil
}

// Get returns the store for table, or store.ErrInvalidTable when table is not
// coded.
func (s *Stores) Get(table store.Table) (*Store, error) {
	st, ok := s.byTable[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidTable, table)
	}
	return st, nil
}
