package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/checksum"
	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/sheet"
	"AgriDataHub/internal/store"
)

// Request is one uploaded workbook.
type Request struct {
	Module     string
	Filename   string
	Workbook   []byte
	ImportedBy string
}

// Result describes what an import did. It is returned alongside a
// *CommitError when the batch stopped part way.
type Result struct {
	BatchID   string        `json:"batchId"`
	Module    string        `json:"module"`
	Filename  string        `json:"filename"`
	Digest    string        `json:"digest,omitempty"`
	Added     int           `json:"added"`
	Existing  []ExistingRow `json:"existing"`
	Committed []store.Row   `json:"data"`
}

// Message is the summary line shown to the uploader.
func (r *Result) Message() string {
	return fmt.Sprintf("%d rows are added from %s into the database", r.Added, r.Filename)
}

// Importer runs the ingestion pipeline for any catalogued module.
type Importer struct {
	store     store.RowStore
	catalogue *schema.Catalogue
	audit     audit.Recorder
	lenient   bool
	newID     func() string
}

// ImporterOption customises an Importer.
type ImporterOption func(*Importer)

// WithLenientHeader treats row 0 as the header when the sentinel is missing.
func WithLenientHeader(lenient bool) ImporterOption {
	return func(im *Importer) { im.lenient = lenient }
}

func NewImporter(st store.RowStore, cat *schema.Catalogue, rec audit.Recorder, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:     st,
		catalogue: cat,
		audit:     rec,
		newID:     func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(im)
	}
	if im.audit == nil {
		im.audit = audit.Discard{}
	}
	return im
}

// Import reads, validates, deduplicates and commits the workbook. Any
// validation error or intra-batch duplicate aborts before the first insert.
func (im *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	s, err := im.catalogue.Get(req.Module)
	if err != nil {
		return nil, err
	}
	parsed, err := sheet.Read(req.Workbook, sheet.Options{HeaderTitle: s.HeaderTitle, Lenient: im.lenient})
	if err != nil {
		return nil, err
	}

	rows := make([]PreparedRow, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		v, err := Validate(rec, s, req.ImportedBy)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PreparedRow{RowNumber: v.RowNumber, Row: ToStored(v, s)})
	}

	res := &Result{
		BatchID:  im.newID(),
		Module:   s.Name,
		Filename: req.Filename,
		Digest:   checksum.Digest(req.Workbook),
	}
	logger.Infof("import %s: %s (%s) %d rows read by %s", s.Name, req.Filename, res.Digest, len(rows), req.ImportedBy)
	return im.apply(ctx, s, req.ImportedBy, rows, res)
}

// ImportRecord runs one manually entered record, keyed by spreadsheet
// title, through the same validation, dedup and commit stages.
func (im *Importer) ImportRecord(ctx context.Context, module string, values map[string]string, importedBy string) (*Result, error) {
	s, err := im.catalogue.Get(module)
	if err != nil {
		return nil, err
	}
	v, err := Validate(sheet.Record{RowNumber: 1, Values: values}, s, importedBy)
	if err != nil {
		return nil, err
	}
	res := &Result{BatchID: im.newID(), Module: s.Name, Filename: "manual entry"}
	return im.apply(ctx, s, importedBy, []PreparedRow{{RowNumber: 1, Row: ToStored(v, s)}}, res)
}

func (im *Importer) apply(ctx context.Context, s *schema.FieldSchema, actor string, rows []PreparedRow, res *Result) (*Result, error) {
	unique, dups := FindBatchDuplicates(rows)
	if len(dups) > 0 {
		return nil, &DuplicateRowsInBatchError{RowNumbers: dups}
	}

	finder := &ExistingFinder{Store: im.store, Schema: s}
	fresh, existing, err := finder.Partition(ctx, unique)
	if err != nil {
		return nil, err
	}
	res.Existing = existing
	if res.Existing == nil {
		res.Existing = []ExistingRow{}
	}

	committer := &Committer{Store: im.store, Schema: s, Audit: im.audit, Digest: res.Digest}
	cr := committer.Commit(ctx, res.BatchID, actor, fresh)
	res.Committed = cr.Committed
	res.Added = len(cr.Committed)
	if cr.Err != nil {
		logger.Errorf("import %s batch %s: %v", s.Name, res.BatchID, cr.Err)
		return res, cr.Err
	}
	logger.Infof("import %s batch %s: %d added, %d existing", s.Name, res.BatchID, res.Added, len(res.Existing))
	return res, nil
}
