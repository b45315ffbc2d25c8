package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"AgriDataHub/api"
	"AgriDataHub/internal/analytics"
	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/checksum"
	"AgriDataHub/internal/ingest"
	recordsvc "AgriDataHub/internal/records"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store"
	"AgriDataHub/internal/store/memstore"
)

var nurseryHeader = []any{"Report Date", "Region", "Province", "District", "Nursery Name", "Planting Material", "Variety", "Quantity", "Remarks"}

type testServer struct {
	store   *memstore.Store
	handler http.Handler
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	cat, err := schema.LoadCatalogue("../../modules.yaml")
	require.NoError(t, err)
	tables := cat.Tables()
	tables[audit.Table] = audit.Columns
	st := memstore.New(tables)
	rec := audit.NewStoreRecorder(st)
	imp := ingest.NewImporter(st, cat, rec)
	h := &Handlers{
		Catalogue: cat,
		Importer:  imp,
		Engine:    analytics.NewEngine(st),
		Records:   recordsvc.NewService(st, cat, rec, imp),
		History:   rec,
	}
	return &testServer{store: st, handler: api.AuditRequests(NewRouter(h))}
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func nurseryWorkbook(t *testing.T) []byte {
	return workbook(t,
		nurseryHeader,
		[]any{45000, "Region 1", "Ilocos Norte", "1st", "Batac Nursery", "Seedling", "NSIC Rc222", 1200},
		[]any{45001, "Region 1", "Ilocos Norte", "2nd", "Batac Nursery", "Cutting", "", 300},
	)
}

type upload struct {
	files      map[string][]byte
	importedBy string
	checksum   string
}

func (s *testServer) upload(t *testing.T, module string, u upload) (int, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range u.files {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	if u.importedBy != "" {
		require.NoError(t, mw.WriteField("imported_by", u.importedBy))
	}
	if u.checksum != "" {
		require.NoError(t, mw.WriteField("checksum", u.checksum))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/"+module+"/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr.Code, out
}

func (s *testServer) json(t *testing.T, method, path string, body any, actor string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-User-Id", actor)
	}
	return s.do(t, req)
}

func TestImportEndpoint(t *testing.T) {
	s := newServer(t)
	wb := nurseryWorkbook(t)

	code, out := s.upload(t, "nursery", upload{files: map[string][]byte{"march.xlsx": wb}, importedBy: "encoder01"})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "2 rows are added from march.xlsx into the database", out["message"])
	assert.Equal(t, 0.0, out["duplicates"])
	assert.Len(t, out["data"], 2)
	assert.Equal(t, checksum.Digest(wb), out["digest"])

	code, out = s.upload(t, "nursery", upload{files: map[string][]byte{"march.xlsx": wb}, importedBy: "encoder02"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0 rows are added from march.xlsx into the database", out["message"])
	assert.Equal(t, 2.0, out["duplicates"])
	assert.Empty(t, out["data"])
}

func TestImportEndpointRejectsDuplicateRows(t *testing.T) {
	s := newServer(t)
	dup := []any{45000, "Region 1", "Ilocos Norte", "1st", "Batac Nursery", "Seedling", "", 10}
	wb := workbook(t, nurseryHeader, dup, []any{45001, "Region 2", "Cagayan", "1st", "Tuguegarao Nursery", "Cutting", "", 5}, dup)

	code, out := s.upload(t, "nursery", upload{files: map[string][]byte{"dup.xlsx": wb}, importedBy: "encoder01"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "DuplicateRowsInBatchError", out["error"])
	assert.Contains(t, out["message"], "4")

	rows, err := s.store.SelectWhere(context.Background(), "nursery_records", store.Predicate{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestImportEndpointRequestChecks(t *testing.T) {
	s := newServer(t)
	wb := nurseryWorkbook(t)

	cases := []struct {
		name   string
		module string
		u      upload
		code   int
		kind   string
	}{
		{"missing imported_by", "nursery", upload{files: map[string][]byte{"a.xlsx": wb}}, http.StatusBadRequest, "BadRequest"},
		{"two files", "nursery", upload{files: map[string][]byte{"a.xlsx": wb, "b.xlsx": wb}, importedBy: "x"}, http.StatusBadRequest, "BadRequest"},
		{"no file", "nursery", upload{importedBy: "x"}, http.StatusBadRequest, "BadRequest"},
		{"checksum mismatch", "nursery", upload{files: map[string][]byte{"a.xlsx": wb}, importedBy: "x", checksum: strings.Repeat("0", 64)}, http.StatusBadRequest, "ChecksumMismatch"},
		{"not a workbook", "nursery", upload{files: map[string][]byte{"a.txt": []byte("hello")}, importedBy: "x"}, http.StatusBadRequest, "UnreadableWorkbookError"},
		{"missing sentinel", "nursery", upload{files: map[string][]byte{"a.xlsx": workbook(t, []any{"Date", "Region"})}, importedBy: "x"}, http.StatusBadRequest, "HeaderNotFoundError"},
		{"unknown module", "orchard", upload{files: map[string][]byte{"a.xlsx": wb}, importedBy: "x"}, http.StatusNotFound, "NotFoundError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := s.upload(t, tc.module, tc.u)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.kind, out["error"])
		})
	}

	code, _ := s.upload(t, "nursery", upload{files: map[string][]byte{"a.xlsx": wb}, importedBy: "x", checksum: strings.ToUpper(checksum.Digest(wb))})
	assert.Equal(t, http.StatusOK, code, "a matching checksum is accepted in any case")
}

func TestImportRowErrorNamesSheetRow(t *testing.T) {
	s := newServer(t)
	wb := workbook(t,
		[]any{"Nursery monitoring"},
		nurseryHeader,
		[]any{45000, "Region 1", "Ilocos Norte", "1st", "", "Seedling", "", 10},
	)
	code, out := s.upload(t, "nursery", upload{files: map[string][]byte{"a.xlsx": wb}, importedBy: "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "IncompleteRowError", out["error"])
	assert.Contains(t, out["message"], "row 3")
}

func TestAnalyticsEndpoint(t *testing.T) {
	s := newServer(t)
	code, _ := s.upload(t, "nursery", upload{files: map[string][]byte{"march.xlsx": nurseryWorkbook(t)}, importedBy: "encoder01"})
	require.Equal(t, http.StatusOK, code)

	code, out := s.json(t, http.MethodGet, "/api/nursery/analytics?region=Region%201", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["table"], 2)
	assert.Len(t, out["totalGraph"], 2)
	assert.Contains(t, out, "monthGraph")
	assert.NotContains(t, out, "lineGraph")

	code, out = s.json(t, http.MethodGet, "/api/calamity/analytics", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, out["total"])
	assert.Equal(t, []any{}, out["lineGraph"])

	code, out = s.json(t, http.MethodGet, "/api/nursery/analytics?start=2023-03-01&end=2023/03/31", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DateParseError", out["error"])
}

func TestAnalyticsTableAndCountEndpoints(t *testing.T) {
	s := newServer(t)
	code, _ := s.upload(t, "nursery", upload{files: map[string][]byte{"march.xlsx": nurseryWorkbook(t)}, importedBy: "encoder01"})
	require.Equal(t, http.StatusOK, code)

	code, out := s.json(t, http.MethodGet, "/api/nursery/analytics/table?region=Region%201&search=cutting", nil, "")
	require.Equal(t, http.StatusOK, code, out)
	assert.Len(t, out["rows"], 1)

	code, out = s.json(t, http.MethodGet, "/api/nursery/analytics/count?region=Region%201", nil, "")
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, 2.0, out["count"])

	code, out = s.json(t, http.MethodGet, "/api/calamity/analytics/count", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, out["count"])

	code, out = s.json(t, http.MethodGet, "/api/nursery/analytics/table?start=2023/03/01&end=03-31-2023", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DateParseError", out["error"])
}

func TestRecordEndpoints(t *testing.T) {
	s := newServer(t)
	values := map[string]any{
		"Report Date": "2024/02/20", "Region": "Region 2", "Province": "Cagayan",
		"Municipality": "Aparri", "Calamity Type": "Typhoon", "Estimated Loss": 1200,
		"imported_by": "encoder01",
	}

	code, out := s.json(t, http.MethodPost, "/api/calamity/records", values, "")
	require.Equal(t, http.StatusCreated, code, out)
	data := out["data"].([]any)
	require.Len(t, data, 1)
	id := int64(data[0].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/api/calamity/records/%d", id)

	code, out = s.json(t, http.MethodPost, "/api/calamity/records", values, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, out["duplicates"])

	code, out = s.json(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2024-02-20", out["data"].(map[string]any)["report_date"])

	code, out = s.json(t, http.MethodPut, path, map[string]any{"remarks": "revised", "Estimated Loss": "900"}, "supervisor")
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, 900.0, out["data"].(map[string]any)["estimated_loss"])

	code, out = s.json(t, http.MethodPut, path, map[string]any{"Region": "Cagayan Valley"}, "supervisor")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidFieldFormatError", out["error"])

	code, out = s.json(t, http.MethodGet, "/api/calamity/records?limit=1", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["rows"], 1)
	assert.Equal(t, 1.0, out["pagination"].(map[string]any)["total_records"])
	assert.Equal(t, false, out["pagination"].(map[string]any)["has_next"])

	code, out = s.json(t, http.MethodGet, "/api/calamity/records?page=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, out = s.json(t, http.MethodGet, "/api/calamity/records/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.json(t, http.MethodDelete, path, nil, "supervisor")
	require.Equal(t, http.StatusOK, code)

	code, out = s.json(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFoundError", out["error"])

	trail, err := s.store.SelectWhere(context.Background(), audit.Table, store.Predicate{All: []store.Cond{
		{Column: "action", Op: store.OpEq, Value: audit.ActionDelete},
	}}, nil)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "supervisor", trail[0]["actor"], "the X-User-Id header names the actor")
}

func TestImportHistoryEndpoint(t *testing.T) {
	s := newServer(t)
	code, out := s.upload(t, "nursery", upload{files: map[string][]byte{"march.xlsx": nurseryWorkbook(t)}, importedBy: "encoder01"})
	require.Equal(t, http.StatusOK, code)
	batch := out["batchId"].(string)

	code, out = s.json(t, http.MethodGet, "/api/nursery/imports/"+batch, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["rows"], 2)

	code, _ = s.json(t, http.MethodGet, "/api/calamity/imports/"+batch, nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthModulesAndUnknownRoutes(t *testing.T) {
	s := newServer(t)
	code, out := s.json(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["success"])

	code, out = s.json(t, http.MethodGet, "/api/modules", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["rows"], 4)

	code, out = s.json(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, out["success"])
}
