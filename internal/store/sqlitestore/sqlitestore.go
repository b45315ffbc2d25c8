// Package sqlitestore implements the RowStore on database/sql with the
// pure-Go modernc SQLite driver. It serves single-node deployments and the
// integration tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"AgriDataHub/internal/store"
)

type dialect struct{}

func (dialect) Placeholder(int) string     { return "?" }
func (dialect) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

// SQLite's LIKE is already case-insensitive for ASCII.
func (dialect) Like() string { return "LIKE" }

// Store is a RowStore backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	d       dialect
	timeout time.Duration
}

// Open opens (creating when needed) the database at path. ":memory:" keeps
// everything in process.
func Open(path string, queryTimeout time.Duration) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; an in-memory database also lives on one connection only.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, queryTimeout), nil
}

// New wraps an already opened database.
func New(db *sql.DB, queryTimeout time.Duration) *Store {
	return &Store{db: db, timeout: queryTimeout}
}

// DB exposes the underlying handle (used by migrations).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	q := store.BuildInsert(s.d, table, row)
	res, err := s.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, store.Wrap("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.Wrap("insert", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, patch store.Row) (store.Row, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	q, err := store.BuildUpdate(s.d, table, id, patch)
	if err != nil {
		return nil, store.Wrap("update", err)
	}
	res, err := s.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, store.Wrap("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, store.Wrap("update", err)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return s.byKey(ctx, table, id)
}

func (s *Store) DeleteByKey(ctx context.Context, table string, id int64) (store.Row, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	row, err := s.byKey(ctx, table, id)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", s.d.Quote(table), s.d.Quote(store.KeyColumn))
	if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
		return nil, store.Wrap("delete", err)
	}
	return row, nil
}

func (s *Store) byKey(ctx context.Context, table string, id int64) (store.Row, error) {
	rows, err := s.query(ctx, table, store.Predicate{
		All: []store.Cond{{Column: store.KeyColumn, Op: store.OpEq, Value: id}},
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) SelectWhere(ctx context.Context, table string, pred store.Predicate, order []store.Order) ([]store.Row, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.query(ctx, table, pred, order)
}

func (s *Store) query(ctx context.Context, table string, pred store.Predicate, order []store.Order) ([]store.Row, error) {
	q, err := store.BuildSelect(s.d, table, pred, order)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]store.Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(store.Row, len(cols))
		for i, c := range cols {
			r[c] = store.Normalize(vals[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ColumnNames(ctx context.Context, table string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, store.Wrap("columns", err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, store.Wrap("columns", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("columns", err)
	}
	if len(cols) == 0 {
		return nil, store.Wrap("columns", fmt.Errorf("relation %q does not exist", table))
	}
	return cols, nil
}

func (s *Store) MaxOfColumn(ctx context.Context, table, column string) (any, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	q := store.BuildMax(s.d, table, column)
	var v any
	if err := s.db.QueryRowContext(ctx, q.SQL).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("max", err)
	}
	return store.Normalize(v), nil
}

var _ store.RowStore = (*Store)(nil)
