package ingest

import (
	"context"

	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

// Committer inserts rows one at a time and records an audit entry per
// insert. Digest, when set, is the checksum of the source workbook.
type Committer struct {
	Store  store.RowStore
	Schema *schema.FieldSchema
	Audit  audit.Recorder
	Digest string
}

// CommitResult lists the rows stored, with their keys. Err is a
// *CommitError when an insert stopped the batch.
type CommitResult struct {
	Committed []store.Row
	Err       error
}

// Commit inserts rows in order and stops at the first failing insert.
// Rows stored before the failure stay stored. Audit failures are logged
// and never undo an insert.
func (c *Committer) Commit(ctx context.Context, batchID, actor string, rows []PreparedRow) CommitResult {
	res := CommitResult{Committed: make([]store.Row, 0, len(rows))}
	for _, r := range rows {
		id, err := c.Store.Insert(ctx, c.Schema.Table, r.Row)
		if err != nil {
			res.Err = &CommitError{RowNumber: r.RowNumber, Committed: len(res.Committed), Err: err}
			return res
		}
		stored := r.Row.Clone()
		stored[store.KeyColumn] = id
		res.Committed = append(res.Committed, stored)

		if c.Audit == nil {
			continue
		}
		entry := audit.Entry{
			Actor:    actor,
			Module:   c.Schema.Name,
			Action:   audit.ActionImport,
			RecordID: id,
			BatchID:  batchID,
			Digest:   c.Digest,
			Payload:  stored,
		}
		if err := c.Audit.Record(ctx, entry); err != nil {
			logger.Errorf("audit entry for %s row %d: %v", c.Schema.Name, r.RowNumber, err)
		}
	}
	return res
}
