// Package analytics folds stored module rows into dashboard aggregates:
// dimension totals, month buckets, gap-filled line series and bar records.
package analytics

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

// Query carries the analytics filters. Start and End are YYYY/MM/DD and
// only take effect together.
type Query struct {
	Region string
	Start  string
	End    string
	Search string
}

// Report is the analytics payload. Which graph fields are set depends on
// the module generation.
type Report struct {
	Generation  schema.Generation
	Window      string
	GraphWindow string
	Table       []store.Row
	Total       int
	LineGraph   []Series
	BarGraph    []BarRecord
	MonthGraph  []Bucket
	TotalGraph  []Bucket
}

// Fields returns the response keys for the report's generation: legacy
// modules emit monthGraph and totalGraph, current ones total, lineGraph
// and barGraph.
func (r *Report) Fields() map[string]any {
	out := map[string]any{"table": r.Table}
	if r.Window != "" {
		out["window"] = r.Window
		out["graphWindow"] = r.GraphWindow
	}
	if r.Generation == schema.Legacy {
		out["monthGraph"] = r.MonthGraph
		out["totalGraph"] = r.TotalGraph
		return out
	}
	out["total"] = r.Total
	out["lineGraph"] = r.LineGraph
	out["barGraph"] = r.BarGraph
	return out
}

type Engine struct {
	store store.RowStore
}

func NewEngine(st store.RowStore) *Engine {
	return &Engine{store: st}
}

// plan is a resolved request: the filter shared by every sub-query and the
// two windows.
type plan struct {
	filter store.Predicate
	table  Window
	graph  Window
	empty  bool
}

func (e *Engine) resolve(ctx context.Context, s *schema.FieldSchema, q Query) (plan, error) {
	var p plan
	if q.Start != "" {
		t, err := ParseWindowDate("start", q.Start)
		if err != nil {
			return p, err
		}
		p.table.Start = t
	}
	if q.End != "" {
		t, err := ParseWindowDate("end", q.End)
		if err != nil {
			return p, err
		}
		p.table.End = t
	}

	if q.Start != "" && q.End != "" {
		p.graph = p.table
	} else {
		max, err := e.store.MaxOfColumn(ctx, s.Table, s.ReportDateColumn)
		if err != nil {
			return p, err
		}
		latest, ok := storedDate(max)
		if !ok {
			p.empty = true
			return p, nil
		}
		p.table = MonthWindow(latest)
		p.graph = p.table
		if s.GraphWindow == schema.WindowSixMonths {
			p.graph = TrailingWindow(latest, 6)
		}
	}

	if q.Region != "" {
		p.filter.All = append(p.filter.All, store.Cond{Column: s.RegionColumn, Op: store.OpEq, Value: q.Region})
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		cols, err := e.store.ColumnNames(ctx, s.Table)
		if err != nil {
			return p, err
		}
		for _, c := range cols {
			p.filter.Any = append(p.filter.Any, store.Cond{Column: c, Op: store.OpContains, Value: term})
		}
	}
	return p, nil
}

func (e *Engine) tableRows(ctx context.Context, s *schema.FieldSchema, p plan) ([]store.Row, error) {
	rows, err := e.store.SelectWhere(ctx, s.Table, p.filter.And(p.table.Conds(s.ReportDateColumn)...),
		[]store.Order{{Column: s.RegionColumn}, {Column: s.ReportDateColumn, Desc: true}})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.Row{}
	}
	return rows, nil
}

// Analyze builds the full analytics report for a module.
func (e *Engine) Analyze(ctx context.Context, s *schema.FieldSchema, q Query) (*Report, error) {
	p, err := e.resolve(ctx, s, q)
	if err != nil {
		return nil, err
	}
	if p.empty {
		return emptyReport(s), nil
	}

	var table, graph []store.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.tableRows(gctx, s, p)
		table = rows
		return err
	})
	sameWindow := p.graph.Equal(p.table)
	if !sameWindow {
		g.Go(func() error {
			rows, err := e.store.SelectWhere(gctx, s.Table, p.filter.And(p.graph.Conds(s.ReportDateColumn)...),
				[]store.Order{{Column: s.Dimension}, {Column: s.ReportDateColumn}})
			graph = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sameWindow {
		graph = table
	}

	r := &Report{Generation: s.Generation, Window: p.table.String(), GraphWindow: p.graph.String(), Table: table}
	months := MonthBuckets(graph, s.Dimension, s.Metric, s.ReportDateColumn)
	switch s.Generation {
	case schema.Legacy:
		r.MonthGraph = months
		r.TotalGraph = TotalBuckets(table, s.Dimension, s.Metric)
	default:
		r.Total = countNames(table, s.NameColumn)
		r.LineGraph = LineSeries(months)
		r.BarGraph = BarRecords(months, s.Dimension)
	}
	return r, nil
}

// Search returns the table listing for the resolved window.
func (e *Engine) Search(ctx context.Context, s *schema.FieldSchema, q Query) ([]store.Row, error) {
	p, err := e.resolve(ctx, s, q)
	if err != nil {
		return nil, err
	}
	if p.empty {
		return []store.Row{}, nil
	}
	return e.tableRows(ctx, s, p)
}

// Count returns the number of rows in the resolved window whose name
// column holds a value. An empty store counts 0.
func (e *Engine) Count(ctx context.Context, s *schema.FieldSchema, q Query) (int, error) {
	rows, err := e.Search(ctx, s, q)
	if err != nil {
		return 0, err
	}
	return countNames(rows, s.NameColumn), nil
}

func emptyReport(s *schema.FieldSchema) *Report {
	return &Report{
		Generation: s.Generation,
		Table:      []store.Row{},
		LineGraph:  []Series{},
		BarGraph:   []BarRecord{},
		MonthGraph: []Bucket{},
		TotalGraph: []Bucket{},
	}
}
