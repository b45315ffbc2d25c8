// Package memstore is an in-process RowStore. It backs the "memory" driver
// for local runs and serves as the fake store in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"AgriDataHub/internal/store"
)

type table struct {
	columns []string
	known   map[string]bool
	rows    []store.Row
	nextID  int64
}

// Store keeps every table in memory guarded by a single lock.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// New creates a store with the given tables. The key column is added to
// every table when missing.
func New(tables map[string][]string) *Store {
	s := &Store{tables: make(map[string]*table, len(tables))}
	for name, cols := range tables {
		s.Define(name, cols...)
	}
	return s
}

// Define creates (or replaces) an empty table.
func (s *Store) Define(name string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols := make([]string, 0, len(columns)+1)
	known := map[string]bool{store.KeyColumn: true}
	cols = append(cols, store.KeyColumn)
	for _, c := range columns {
		if known[c] {
			continue
		}
		known[c] = true
		cols = append(cols, c)
	}
	s.tables[name] = &table{columns: cols, known: known, nextID: 1}
}

func (s *Store) lookup(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return t, nil
}

func (s *Store) Insert(_ context.Context, name string, row store.Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(name)
	if err != nil {
		return 0, store.Wrap("insert", err)
	}
	rec := make(store.Row, len(t.columns))
	for _, c := range t.columns {
		rec[c] = nil
	}
	for k, v := range row {
		if k == store.KeyColumn {
			continue
		}
		if !t.known[k] {
			return 0, store.Wrap("insert", fmt.Errorf("column %q of relation %q does not exist", k, name))
		}
		rec[k] = store.Normalize(v)
	}
	id := t.nextID
	t.nextID++
	rec[store.KeyColumn] = id
	t.rows = append(t.rows, rec)
	return id, nil
}

func (s *Store) indexOf(t *table, id int64) int {
	for i, r := range t.rows {
		if r[store.KeyColumn] == id {
			return i
		}
	}
	return -1
}

func (s *Store) Update(_ context.Context, name string, id int64, patch store.Row) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, store.Wrap("update", err)
	}
	i := s.indexOf(t, id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	for k := range patch {
		if !t.known[k] || k == store.KeyColumn {
			return nil, store.Wrap("update", fmt.Errorf("column %q of relation %q cannot be updated", k, name))
		}
	}
	for k, v := range patch {
		t.rows[i][k] = store.Normalize(v)
	}
	return t.rows[i].Clone(), nil
}

func (s *Store) DeleteByKey(_ context.Context, name string, id int64) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, store.Wrap("delete", err)
	}
	i := s.indexOf(t, id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	removed := t.rows[i]
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return removed, nil
}

func (s *Store) SelectWhere(_ context.Context, name string, pred store.Predicate, order []store.Order) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	for _, c := range append(append([]store.Cond(nil), pred.All...), pred.Any...) {
		if !t.known[c.Column] {
			return nil, store.Wrap("select", fmt.Errorf("column %q does not exist", c.Column))
		}
	}
	out := make([]store.Row, 0)
	for _, r := range t.rows {
		if Matches(r, pred) {
			out = append(out, r.Clone())
		}
	}
	if len(order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range order {
				c := store.Compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	return out, nil
}

func (s *Store) ColumnNames(_ context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, store.Wrap("columns", err)
	}
	return append([]string(nil), t.columns...), nil
}

func (s *Store) MaxOfColumn(_ context.Context, name, column string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(name)
	if err != nil {
		return nil, store.Wrap("max", err)
	}
	if !t.known[column] {
		return nil, store.Wrap("max", fmt.Errorf("column %q does not exist", column))
	}
	var max any
	for _, r := range t.rows {
		v := r[column]
		if v == nil {
			continue
		}
		if max == nil || store.Compare(v, max) > 0 {
			max = v
		}
	}
	return max, nil
}

// Matches evaluates pred against a single row.
func Matches(r store.Row, pred store.Predicate) bool {
	for _, c := range pred.All {
		if !matchCond(r, c) {
			return false
		}
	}
	if len(pred.Any) == 0 {
		return true
	}
	for _, c := range pred.Any {
		if matchCond(r, c) {
			return true
		}
	}
	return false
}

func matchCond(r store.Row, c store.Cond) bool {
	v := r[c.Column]
	switch c.Op {
	case store.OpEq:
		if v == nil || c.Value == nil {
			return v == nil && c.Value == nil
		}
		return store.Compare(v, c.Value) == 0
	case store.OpGte:
		return v != nil && store.Compare(v, c.Value) >= 0
	case store.OpLte:
		return v != nil && store.Compare(v, c.Value) <= 0
	case store.OpContains:
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(store.Text(v)), strings.ToLower(store.Text(c.Value)))
	}
	return false
}

var _ store.RowStore = (*Store)(nil)
