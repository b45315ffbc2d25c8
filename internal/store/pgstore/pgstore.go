// Package pgstore is the PostgreSQL RowStore built on a pgx connection pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"AgriDataHub/internal/store"
)

// Config carries the connection and pool settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MinConns       int32
	MaxConns       int32
	ConnectTimeout time.Duration
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// DSN renders the postgres:// URL for the config.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// PoolConfig parses the DSN and applies the pool limits.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if pc.MinConns > pc.MaxConns {
		pc.MinConns = pc.MaxConns
	}
	if c.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return pc, nil
}

type dialect struct{}

func (dialect) Placeholder(n int) string  { return "$" + strconv.Itoa(n) }
func (dialect) Quote(ident string) string { return pgx.Identifier{ident}.Sanitize() }
func (dialect) Like() string              { return "ILIKE" }

// Store is a RowStore over a pgxpool.Pool.
type Store struct {
	pool           *pgxpool.Pool
	d              dialect
	acquireTimeout time.Duration
	queryTimeout   time.Duration
}

// Open connects the pool and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pgxpool DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, acquireTimeout: cfg.AcquireTimeout, queryTimeout: cfg.QueryTimeout}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// acquire takes a pooled connection within the acquire timeout and returns a
// context bounded by the query timeout.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, context.Context, context.CancelFunc, error) {
	actx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	conn, err := s.pool.Acquire(actx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if s.queryTimeout > 0 {
		qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		return conn, qctx, cancel, nil
	}
	qctx, cancel := context.WithCancel(ctx)
	return conn, qctx, cancel, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (int64, error) {
	conn, qctx, cancel, err := s.acquire(ctx)
	if err != nil {
		return 0, store.Wrap("insert", err)
	}
	defer conn.Release()
	defer cancel()

	q := store.BuildInsert(s.d, table, row)
	var id int64
	if err := conn.QueryRow(qctx, q.SQL+" RETURNING "+s.d.Quote(store.KeyColumn), q.Args...).Scan(&id); err != nil {
		return 0, store.Wrap("insert", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, patch store.Row) (store.Row, error) {
	q, err := store.BuildUpdate(s.d, table, id, patch)
	if err != nil {
		return nil, store.Wrap("update", err)
	}
	return s.returning(ctx, "update", q.SQL+" RETURNING *", q.Args)
}

func (s *Store) DeleteByKey(ctx context.Context, table string, id int64) (store.Row, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 RETURNING *", s.d.Quote(table), s.d.Quote(store.KeyColumn))
	return s.returning(ctx, "delete", stmt, []any{id})
}

func (s *Store) returning(ctx context.Context, op, sql string, args []any) (store.Row, error) {
	rows, err := s.collect(ctx, op, sql, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) SelectWhere(ctx context.Context, table string, pred store.Predicate, order []store.Order) ([]store.Row, error) {
	q, err := store.BuildSelect(s.d, table, pred, order)
	if err != nil {
		return nil, store.Wrap("select", err)
	}
	return s.collect(ctx, "select", q.SQL, q.Args)
}

func (s *Store) collect(ctx context.Context, op, sql string, args []any) ([]store.Row, error) {
	conn, qctx, cancel, err := s.acquire(ctx)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer conn.Release()
	defer cancel()

	rows, err := conn.Query(qctx, sql, args...)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (store.Row, error) {
		m, err := pgx.RowToMap(r)
		if err != nil {
			return nil, err
		}
		row := make(store.Row, len(m))
		for k, v := range m {
			row[k] = normalize(v)
		}
		return row, nil
	})
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	return out, nil
}

func (s *Store) ColumnNames(ctx context.Context, table string) ([]string, error) {
	conn, qctx, cancel, err := s.acquire(ctx)
	if err != nil {
		return nil, store.Wrap("columns", err)
	}
	defer conn.Release()
	defer cancel()

	rows, err := conn.Query(qctx, `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, store.Wrap("columns", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, store.Wrap("columns", err)
	}
	if len(cols) == 0 {
		return nil, store.Wrap("columns", fmt.Errorf("relation %q does not exist", table))
	}
	return cols, nil
}

func (s *Store) MaxOfColumn(ctx context.Context, table, column string) (any, error) {
	conn, qctx, cancel, err := s.acquire(ctx)
	if err != nil {
		return nil, store.Wrap("max", err)
	}
	defer conn.Release()
	defer cancel()

	q := store.BuildMax(s.d, table, column)
	var v any
	if err := conn.QueryRow(qctx, q.SQL).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("max", err)
	}
	return normalize(v), nil
}

// normalize folds pgtype wrappers into plain values before the generic
// normalisation applies.
func normalize(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !t.Valid {
			return nil
		}
		return t.Time.Format(store.DateLayout)
	}
	return store.Normalize(v)
}

var _ store.RowStore = (*Store)(nil)
