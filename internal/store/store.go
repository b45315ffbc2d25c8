// Package store defines the row store contract consumed by the ingestion and
// analytics engines. Concrete stores live in pgstore (PostgreSQL via pgxpool),
// sqlitestore (database/sql + modernc sqlite) and memstore (in process).
package store

import (
	"context"
	"errors"
	"fmt"
)

// KeyColumn is the primary key column every module table carries.
const KeyColumn = "id"

// Row is one stored record keyed by column name. Values are already passed
// through Normalize when they come out of a store.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Op is a comparison operator used inside a predicate.
type Op int

const (
	OpEq Op = iota
	OpGte
	OpLte
	// OpContains is a case-insensitive substring match on the text form of the column.
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	case OpContains:
		return "contains"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Cond is a single column comparison.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// Predicate matches rows satisfying every condition in All and, when Any is
// non-empty, at least one condition in Any.
type Predicate struct {
	All []Cond
	Any []Cond
}

// Empty reports whether the predicate matches every row.
func (p Predicate) Empty() bool {
	return len(p.All) == 0 && len(p.Any) == 0
}

// And returns a copy of p with c appended to the conjunction.
func (p Predicate) And(c ...Cond) Predicate {
	out := Predicate{
		All: append(append([]Cond(nil), p.All...), c...),
		Any: append([]Cond(nil), p.Any...),
	}
	return out
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// RowStore is the relational storage the core runs against. Implementations
// must be safe for concurrent use; every call is one bounded round trip.
type RowStore interface {
	// Insert stores row in table and returns the generated key.
	Insert(ctx context.Context, table string, row Row) (int64, error)

	// Update applies patch to the row with the given key and returns the
	// row as stored afterwards. Returns ErrNotFound when no row matches.
	Update(ctx context.Context, table string, id int64, patch Row) (Row, error)

	// DeleteByKey removes the row with the given key and returns it.
	// Returns ErrNotFound when no row matches.
	DeleteByKey(ctx context.Context, table string, id int64) (Row, error)

	// SelectWhere returns rows matching pred in the given order.
	SelectWhere(ctx context.Context, table string, pred Predicate, order []Order) ([]Row, error)

	// ColumnNames lists the table's columns in declaration order.
	ColumnNames(ctx context.Context, table string) ([]string, error)

	// MaxOfColumn returns MAX(column) or nil for an empty table.
	MaxOfColumn(ctx context.Context, table, column string) (any, error)
}

// ErrNotFound is returned when a lookup by key misses.
var ErrNotFound = errors.New("record not found")

// StoreError wraps any failure reported by the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind names the error for API envelopes.
func (e *StoreError) Kind() string { return "StoreError" }

// Wrap returns nil for a nil error, passes ErrNotFound through untouched and
// wraps everything else in a StoreError.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
