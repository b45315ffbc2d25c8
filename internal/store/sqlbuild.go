package store

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect captures the SQL differences between the relational stores.
type Dialect interface {
	Placeholder(n int) string
	Quote(ident string) string
	// Like is the case-insensitive LIKE operator.
	Like() string
}

// Query is a rendered statement and its positional arguments.
type Query struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) cond(c Cond) (string, error) {
	col := b.d.Quote(c.Column)
	switch c.Op {
	case OpEq:
		if c.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + b.bind(c.Value), nil
	case OpGte:
		return col + " >= " + b.bind(c.Value), nil
	case OpLte:
		return col + " <= " + b.bind(c.Value), nil
	case OpContains:
		pattern := "%" + escapeLike(Text(c.Value)) + "%"
		return fmt.Sprintf("CAST(%s AS TEXT) %s %s ESCAPE '\\'", col, b.d.Like(), b.bind(pattern)), nil
	}
	return "", fmt.Errorf("unsupported operator %v", c.Op)
}

func (b *builder) where(p Predicate) (string, error) {
	if p.Empty() {
		return "", nil
	}
	parts := make([]string, 0, len(p.All)+1)
	for _, c := range p.All {
		s, err := b.cond(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(p.Any) > 0 {
		ors := make([]string, 0, len(p.Any))
		for _, c := range p.Any {
			s, err := b.cond(c)
			if err != nil {
				return "", err
			}
			ors = append(ors, s)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BuildSelect renders SELECT * with the predicate and ordering.
func BuildSelect(d Dialect, table string, pred Predicate, order []Order) (Query, error) {
	b := &builder{d: d}
	where, err := b.where(pred)
	if err != nil {
		return Query{}, err
	}
	sql := "SELECT * FROM " + d.Quote(table) + where
	if len(order) > 0 {
		terms := make([]string, len(order))
		for i, o := range order {
			terms[i] = d.Quote(o.Column)
			if o.Desc {
				terms[i] += " DESC"
			}
		}
		sql += " ORDER BY " + strings.Join(terms, ", ")
	}
	return Query{SQL: sql, Args: b.args}, nil
}

// BuildInsert renders an INSERT of row's columns in sorted order. The key
// column is never inserted.
func BuildInsert(d Dialect, table string, row Row) Query {
	b := &builder{d: d}
	cols := SortedColumns(row)
	names := make([]string, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == KeyColumn {
			continue
		}
		names = append(names, d.Quote(c))
		marks = append(marks, b.bind(row[c]))
	}
	return Query{
		SQL:  fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(table), strings.Join(names, ", "), strings.Join(marks, ", ")),
		Args: b.args,
	}
}

// BuildUpdate renders UPDATE ... SET ... WHERE key = ?.
func BuildUpdate(d Dialect, table string, id int64, patch Row) (Query, error) {
	b := &builder{d: d}
	sets := make([]string, 0, len(patch))
	for _, c := range SortedColumns(patch) {
		if c == KeyColumn {
			return Query{}, fmt.Errorf("key column %q cannot be updated", c)
		}
		sets = append(sets, d.Quote(c)+" = "+b.bind(patch[c]))
	}
	if len(sets) == 0 {
		return Query{}, fmt.Errorf("empty patch")
	}
	key := b.bind(id)
	return Query{
		SQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", d.Quote(table), strings.Join(sets, ", "), d.Quote(KeyColumn), key),
		Args: b.args,
	}, nil
}

// BuildMax renders SELECT MAX(column).
func BuildMax(d Dialect, table, column string) Query {
	return Query{SQL: fmt.Sprintf("SELECT MAX(%s) FROM %s", d.Quote(column), d.Quote(table))}
}

// SortedColumns returns the row's column names in lexical order so the
// rendered SQL is deterministic.
func SortedColumns(r Row) []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
