// Package records serves the per-module HTTP endpoints: spreadsheet import,
// analytics, record CRUD and import history.
package records

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"AgriDataHub/api"
	"AgriDataHub/api/constants"
	"AgriDataHub/api/utils"
	"AgriDataHub/internal/analytics"
	"AgriDataHub/internal/checksum"
	"AgriDataHub/internal/ingest"
	recordsvc "AgriDataHub/internal/records"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
)

const defaultUploadLimit = 32 << 20

// BatchReader returns the audit entries of one import batch.
type BatchReader interface {
	Batch(ctx context.Context, module, batchID string) ([]store.Row, error)
}

// Handlers holds what the endpoints need. UploadLimit caps multipart
// bodies in bytes.
type Handlers struct {
	Catalogue   *schema.Catalogue
	Importer    *ingest.Importer
	Engine      *analytics.Engine
	Records     *recordsvc.Service
	History     BatchReader
	UploadLimit int64
}

func (h *Handlers) uploadLimit() int64 {
	if h.UploadLimit > 0 {
		return h.UploadLimit
	}
	return defaultUploadLimit
}

// module resolves the {module} path segment or writes a 404.
func (h *Handlers) module(w http.ResponseWriter, r *http.Request) (*schema.FieldSchema, bool) {
	fs, err := h.Catalogue.Get(mux.Vars(r)[constants.KeyModule])
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return nil, false
	}
	return fs, true
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[constants.KeyID], 10, 64)
	if err != nil || id <= 0 {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrInvalidRecordID)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrInvalidJSON)
		return nil, false
	}
	return body, true
}

func importPayload(res *ingest.Result) map[string]interface{} {
	return map[string]interface{}{
		constants.KeyMessage:    res.Message(),
		constants.KeyDuplicates: len(res.Existing),
		constants.KeyExisting:   res.Existing,
		constants.KeyData:       res.Committed,
		constants.KeyBatchID:    res.BatchID,
	}
}

// Modules lists the catalogued modules.
func (h *Handlers) Modules(w http.ResponseWriter, r *http.Request) {
	rows := make([]map[string]interface{}, 0)
	for _, name := range h.Catalogue.Names() {
		fs, _ := h.Catalogue.Get(name)
		titles := make([]string, 0, len(fs.Columns))
		for _, c := range fs.Columns {
			titles = append(titles, c.Title)
		}
		rows = append(rows, map[string]interface{}{
			"name":       fs.Name,
			"generation": fs.Generation,
			"columns":    titles,
			"required":   fs.Required,
		})
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyRows: rows})
}

// Import handles POST /api/{module}/import: one spreadsheet file plus
// imported_by, with an optional sha256 checksum of the file.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit())
	if err := r.ParseMultipartForm(h.uploadLimit()); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrMultipartParse)
		return
	}
	var uploads int
	for _, fhs := range r.MultipartForm.File {
		uploads += len(fhs)
	}
	files := r.MultipartForm.File[constants.KeyFile]
	if uploads != 1 || len(files) != 1 {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrExactlyOneFile)
		return
	}
	importedBy := api.RequestedBy(r)
	if importedBy == "" {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrMissingImportedBy)
		return
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrFileOpen+fh.Filename)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrFileOpen+fh.Filename)
		return
	}
	if sum := strings.TrimSpace(r.FormValue(constants.KeyChecksum)); sum != "" {
		if match, _ := checksum.NewMatcher(sum).Match(data); !match {
			api.RespondWithError(w, http.StatusBadRequest, constants.KindChecksumMismatch, constants.ErrChecksumMismatch)
			return
		}
	}

	res, err := h.Importer.Import(r.Context(), ingest.Request{
		Module:     fs.Name,
		Filename:   fh.Filename,
		Workbook:   data,
		ImportedBy: importedBy,
	})
	if err != nil {
		var extra map[string]interface{}
		if res != nil {
			extra = map[string]interface{}{
				constants.KeyData:    res.Committed,
				constants.KeyBatchID: res.BatchID,
				"detail":             constants.ErrImportPartial,
			}
		}
		api.RespondWithErr(w, err, extra)
		return
	}
	api.LogInfo("%s import %s by %s: %d added, %d existing", fs.Name, fh.Filename, importedBy, res.Added, len(res.Existing))
	payload := importPayload(res)
	payload[constants.KeyDigest] = res.Digest
	api.RespondWithPayload(w, http.StatusOK, payload)
}

func analyticsQuery(r *http.Request) analytics.Query {
	q := r.URL.Query()
	return analytics.Query{
		Region: strings.TrimSpace(q.Get(constants.KeyRegion)),
		Start:  strings.TrimSpace(q.Get(constants.KeyStart)),
		End:    strings.TrimSpace(q.Get(constants.KeyEnd)),
		Search: q.Get(constants.KeySearch),
	}
}

// Analytics handles GET /api/{module}/analytics.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	report, err := h.Engine.Analyze(r.Context(), fs, analyticsQuery(r))
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, report.Fields())
}

// AnalyticsTable handles GET /api/{module}/analytics/table: only the table
// listing of the resolved window.
func (h *Handlers) AnalyticsTable(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	rows, err := h.Engine.Search(r.Context(), fs, analyticsQuery(r))
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyRows: rows})
}

// AnalyticsCount handles GET /api/{module}/analytics/count.
func (h *Handlers) AnalyticsCount(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	n, err := h.Engine.Count(r.Context(), fs, analyticsQuery(r))
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyCount: n})
}

// ListRecords handles GET /api/{module}/records?region=&search=&page=&limit=.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	p, err := utils.ParsePagination(q)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, err.Error())
		return
	}
	page, err := h.Records.List(r.Context(), fs.Name, recordsvc.ListQuery{
		Region: strings.TrimSpace(q.Get(constants.KeyRegion)),
		Search: q.Get(constants.KeySearch),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{
		constants.KeyRows:       page.Rows,
		constants.KeyPagination: p.WithTotal(page.Total),
	})
}

// CreateRecord handles POST /api/{module}/records with a JSON object keyed
// by spreadsheet title or stored column name.
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	actor := api.RequestedBy(r)
	if v, ok := body[constants.KeyImportedBy].(string); ok && strings.TrimSpace(v) != "" {
		actor = strings.TrimSpace(v)
	}
	delete(body, constants.KeyImportedBy)
	if actor == "" {
		api.RespondWithError(w, http.StatusBadRequest, constants.KindBadRequest, constants.ErrMissingImportedBy)
		return
	}

	res, err := h.Records.Create(r.Context(), fs.Name, body, actor)
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	status := http.StatusCreated
	if res.Added == 0 {
		status = http.StatusOK
	}
	api.RespondWithPayload(w, status, importPayload(res))
}

// GetRecord handles GET /api/{module}/records/{id}.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	row, err := h.Records.Get(r.Context(), fs.Name, id)
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyData: row})
}

// UpdateRecord handles PUT /api/{module}/records/{id} with a partial JSON
// object of the fields to change.
func (h *Handlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	patch, ok := decodeBody(w, r)
	if !ok {
		return
	}
	row, err := h.Records.Update(r.Context(), fs.Name, id, patch, api.RequestedBy(r))
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyData: row})
}

// DeleteRecord handles DELETE /api/{module}/records/{id}.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	row, err := h.Records.Delete(r.Context(), fs.Name, id, api.RequestedBy(r))
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyData: row})
}

// ImportHistory handles GET /api/{module}/imports/{batch}: the audit trail
// of one import batch.
func (h *Handlers) ImportHistory(w http.ResponseWriter, r *http.Request) {
	fs, ok := h.module(w, r)
	if !ok {
		return
	}
	entries, err := h.History.Batch(r.Context(), fs.Name, mux.Vars(r)[constants.KeyBatch])
	if err != nil {
		api.RespondWithErr(w, err, nil)
		return
	}
	if len(entries) == 0 {
		api.RespondWithErr(w, store.ErrNotFound, nil)
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{constants.KeyRows: entries})
}
