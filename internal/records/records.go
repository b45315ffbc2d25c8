// Package records serves single-record reads and edits on module tables.
// New records go through the ingestion pipeline so they are validated and
// deduplicated exactly like spreadsheet rows.
package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/ingest"
	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

// PatchError rejects one field of an update or create body.
type PatchError struct {
	Column  string
	Message string
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Column, e.Message)
}

func (e *PatchError) Kind() string { return "InvalidFieldFormatError" }

// ListQuery filters and pages a record listing. A zero Limit returns every
// matching row.
type ListQuery struct {
	Region string
	Search string
	Limit  int
	Offset int
}

// Page is one slice of a listing plus the number of matching rows.
type Page struct {
	Rows  []store.Row `json:"rows"`
	Total int         `json:"total"`
}

type Service struct {
	store     store.RowStore
	catalogue *schema.Catalogue
	audit     audit.Recorder
	importer  *ingest.Importer
}

func NewService(st store.RowStore, cat *schema.Catalogue, rec audit.Recorder, imp *ingest.Importer) *Service {
	if rec == nil {
		rec = audit.Discard{}
	}
	if imp == nil {
		imp = ingest.NewImporter(st, cat, rec)
	}
	return &Service{store: st, catalogue: cat, audit: rec, importer: imp}
}

func byKey(id int64) store.Predicate {
	return store.Predicate{All: []store.Cond{{Column: store.KeyColumn, Op: store.OpEq, Value: id}}}
}

// Get returns the record with the given key or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, module string, id int64) (store.Row, error) {
	fs, err := s.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, fs, id)
}

func (s *Service) get(ctx context.Context, fs *schema.FieldSchema, id int64) (store.Row, error) {
	rows, err := s.store.SelectWhere(ctx, fs.Table, byKey(id), nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

// Create stores one record. values may be keyed by spreadsheet title or by
// stored column name. An identical stored record is reported in
// Result.Existing instead of being inserted twice.
func (s *Service) Create(ctx context.Context, module string, values map[string]any, actor string) (*ingest.Result, error) {
	fs, err := s.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	titled := make(map[string]string, len(values))
	for k, v := range values {
		col, ok := resolve(fs, k)
		if !ok || col == schema.ImportedByColumn {
			return nil, &PatchError{Column: k, Message: "unknown column"}
		}
		c, _ := fs.ColumnByStored(col)
		titled[c.Title] = store.Text(v)
	}
	return s.importer.ImportRecord(ctx, module, titled, actor)
}

// Update applies patch to the record and returns it as stored afterwards.
// Keys may be titles or stored names; values are checked against the
// module's column types and format rules before anything is written.
func (s *Service) Update(ctx context.Context, module string, id int64, patch map[string]any, actor string) (store.Row, error) {
	fs, err := s.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	row, err := preparePatch(fs, patch)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return s.get(ctx, fs, id)
	}
	updated, err := s.store.Update(ctx, fs.Table, id, row)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{Actor: actor, Module: fs.Name, Action: audit.ActionUpdate, RecordID: id, Payload: row})
	return updated, nil
}

// Delete removes the record and returns what was stored.
func (s *Service) Delete(ctx context.Context, module string, id int64, actor string) (store.Row, error) {
	fs, err := s.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	removed, err := s.store.DeleteByKey(ctx, fs.Table, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{Actor: actor, Module: fs.Name, Action: audit.ActionDelete, RecordID: id, Payload: removed})
	return removed, nil
}

// List returns records newest first, optionally narrowed to a region and a
// case-insensitive search over every column.
func (s *Service) List(ctx context.Context, module string, q ListQuery) (*Page, error) {
	fs, err := s.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	var pred store.Predicate
	if q.Region != "" {
		pred.All = append(pred.All, store.Cond{Column: fs.RegionColumn, Op: store.OpEq, Value: q.Region})
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		cols, err := s.store.ColumnNames(ctx, fs.Table)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			pred.Any = append(pred.Any, store.Cond{Column: c, Op: store.OpContains, Value: term})
		}
	}
	rows, err := s.store.SelectWhere(ctx, fs.Table, pred,
		[]store.Order{{Column: fs.ReportDateColumn, Desc: true}, {Column: store.KeyColumn, Desc: true}})
	if err != nil {
		return nil, err
	}

	page := &Page{Total: len(rows), Rows: []store.Row{}}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Offset >= len(rows) {
		return page, nil
	}
	end := len(rows)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	page.Rows = rows[q.Offset:end]
	return page, nil
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		logger.Errorf("audit %s %s record %d: %v", e.Module, e.Action, e.RecordID, err)
	}
}

// resolve maps a title or stored name onto the stored column.
func resolve(fs *schema.FieldSchema, key string) (string, bool) {
	if fs.Writable(key) {
		return key, true
	}
	return fs.StoredName(key)
}

func isRequired(fs *schema.FieldSchema, title string) bool {
	for _, r := range fs.Required {
		if r == title {
			return true
		}
	}
	return false
}

func preparePatch(fs *schema.FieldSchema, patch map[string]any) (store.Row, error) {
	row := make(store.Row, len(patch))
	for k, raw := range patch {
		col, ok := resolve(fs, k)
		if !ok {
			return nil, &PatchError{Column: k, Message: "unknown column"}
		}
		val := strings.TrimSpace(store.Text(raw))
		if col == schema.ImportedByColumn {
			row[col] = val
			continue
		}
		c, _ := fs.ColumnByStored(col)
		if val == "" {
			if isRequired(fs, c.Title) {
				return nil, &PatchError{Column: c.Title, Message: "is required"}
			}
			row[col] = nil
			continue
		}
		stored := ingest.StoredValue(c.Type, val)
		switch c.Type {
		case schema.TypeDate:
			if _, err := time.Parse(store.DateLayout, store.Text(stored)); err != nil {
				return nil, &PatchError{Column: c.Title, Message: "not a date"}
			}
		case schema.TypeNumeric:
			if _, ok := stored.(float64); !ok {
				return nil, &PatchError{Column: c.Title, Message: "not a number"}
			}
		}
		for i := range fs.FormatRules {
			rule := &fs.FormatRules[i]
			if rule.Column == c.Title && !rule.Check(val) {
				return nil, &PatchError{Column: c.Title, Message: rule.Message}
			}
		}
		row[col] = stored
	}
	return row, nil
}
