// Package audit keeps the trail of data changes made through imports and
// record edits.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/store"
)

// Table is the audit_log relation created by the migrations.
const Table = "audit_log"

// Columns are the stored columns of Table besides the key.
var Columns = []string{"actor", "module", "action", "record_id", "batch_id", "digest", "payload", "created_at"}

const (
	ActionImport = "import"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Entry struct {
	Actor    string
	Module   string
	Action   string
	RecordID int64
	BatchID  string
	Digest   string
	Payload  any
}

// Recorder persists audit entries. Callers treat failures as best effort.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// StoreRecorder writes entries to audit_log and mirrors them as [AUDIT]
// log lines.
type StoreRecorder struct {
	store store.RowStore
	now   func() time.Time
}

func NewStoreRecorder(st store.RowStore) *StoreRecorder {
	return &StoreRecorder{store: st, now: time.Now}
}

func (r *StoreRecorder) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	logger.Audit("%s %s record=%d batch=%s by=%s", e.Module, e.Action, e.RecordID, e.BatchID, e.Actor)

	row := store.Row{
		"actor":      e.Actor,
		"module":     e.Module,
		"action":     e.Action,
		"batch_id":   nullable(e.BatchID),
		"digest":     nullable(e.Digest),
		"payload":    string(payload),
		"created_at": r.now().UTC().Format(time.RFC3339),
	}
	if e.RecordID != 0 {
		row["record_id"] = e.RecordID
	}
	_, err = r.store.Insert(ctx, Table, row)
	return err
}

// Batch returns the entries written for one import batch in insertion order.
func (r *StoreRecorder) Batch(ctx context.Context, module, batchID string) ([]store.Row, error) {
	return r.store.SelectWhere(ctx, Table, store.Predicate{All: []store.Cond{
		{Column: "module", Op: store.OpEq, Value: module},
		{Column: "batch_id", Op: store.OpEq, Value: batchID},
	}}, []store.Order{{Column: store.KeyColumn}})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Record(context.Context, Entry) error { return nil }
