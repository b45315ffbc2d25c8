package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

// PreparedRow is a validated row in stored form, still tied to its
// spreadsheet position.
type PreparedRow struct {
	RowNumber int
	Row       store.Row
}

// CanonicalKey serialises a stored-form row with columns in lexical order.
// Rows with equal keys are duplicates.
func CanonicalKey(row store.Row) string {
	var b strings.Builder
	for _, c := range store.SortedColumns(row) {
		if c == store.KeyColumn {
			continue
		}
		b.WriteString(strconv.Quote(c))
		b.WriteByte('=')
		if v := row[c]; v == nil {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.Quote(store.Text(v)))
		}
		b.WriteByte(';')
	}
	return b.String()
}

// FindBatchDuplicates keeps the first occurrence of every canonical key and
// returns the row numbers of every later repeat.
func FindBatchDuplicates(rows []PreparedRow) (unique []PreparedRow, duplicates []int) {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		key := CanonicalKey(r.Row)
		if _, dup := seen[key]; dup {
			duplicates = append(duplicates, r.RowNumber)
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, r)
	}
	return unique, duplicates
}

// ExistingRow is an upload row that matches something already stored.
type ExistingRow struct {
	RowNumber int         `json:"rowNumber"`
	Reason    string      `json:"reason"`
	Matches   []store.Row `json:"matches"`
}

// ExistingFinder looks rows up by equality over every stored column except
// the module's exclusion set.
type ExistingFinder struct {
	Store  store.RowStore
	Schema *schema.FieldSchema
}

// Predicate builds the equality filter for row. It is empty when every
// column of the row is excluded.
func (f *ExistingFinder) Predicate(row store.Row) store.Predicate {
	var p store.Predicate
	for _, c := range store.SortedColumns(row) {
		if c == store.KeyColumn || f.Schema.ExcludedFromEquality(c) {
			continue
		}
		p.All = append(p.All, store.Cond{Column: c, Op: store.OpEq, Value: row[c]})
	}
	return p
}

// Find returns the stored rows equal to row.
func (f *ExistingFinder) Find(ctx context.Context, row store.Row) ([]store.Row, error) {
	pred := f.Predicate(row)
	if pred.Empty() {
		return nil, nil
	}
	return f.Store.SelectWhere(ctx, f.Schema.Table, pred, nil)
}

// Partition splits rows into new ones and ones already stored, one point
// lookup per row in arrival order.
func (f *ExistingFinder) Partition(ctx context.Context, rows []PreparedRow) (fresh []PreparedRow, existing []ExistingRow, err error) {
	for _, r := range rows {
		matches, err := f.Find(ctx, r.Row)
		if err != nil {
			return nil, nil, err
		}
		if len(matches) > 0 {
			existing = append(existing, ExistingRow{
				RowNumber: r.RowNumber,
				Reason:    fmt.Sprintf("row %d already exists in the database", r.RowNumber),
				Matches:   matches,
			})
			continue
		}
		fresh = append(fresh, r)
	}
	return fresh, existing, nil
}
