package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgriDataHub/internal/analytics"
	"AgriDataHub/internal/ingest"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/sheet"
	"AgriDataHub/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{&ingest.IncompleteRowError{RowNumber: 3, Column: "Region"}, http.StatusBadRequest, "IncompleteRowError"},
		{&ingest.DuplicateRowsInBatchError{RowNumbers: []int{4}}, http.StatusBadRequest, "DuplicateRowsInBatchError"},
		{&sheet.UnreadableWorkbookError{Err: errors.New("zip: not a valid zip file")}, http.StatusBadRequest, "UnreadableWorkbookError"},
		{&analytics.DateParseError{Field: "start", Value: "x"}, http.StatusBadRequest, "DateParseError"},
		{fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, "NotFoundError"},
		{fmt.Errorf("%w: %q", schema.ErrUnknownModule, "orchard"), http.StatusNotFound, "NotFoundError"},
		{&ingest.CommitError{RowNumber: 5, Err: store.Wrap("insert", errors.New("conn reset"))}, http.StatusInternalServerError, "StoreError"},
		{errors.New("boom"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tc := range cases {
		status, kind := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, kind, tc.err.Error())
	}
}

func TestRespondWithErrHidesUnexpectedErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithErr(rr, errors.New("pq: password authentication failed"), map[string]interface{}{"batchId": "b1"})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, map[string]interface{}{
		"success": false, "error": "InternalError", "message": "Unexpected server error", "batchId": "b1",
	}, out)
}

func TestAuditRequestsAttachesActor(t *testing.T) {
	var seen string
	h := AuditRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestedBy(r)
		RespondWithError(w, http.StatusTeapot, "BadRequest", "nope")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/nursery/records", nil)
	req.Header.Set("X-User-Id", "encoder07")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "encoder07", seen)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/nursery/records?imported_by=encoder09", nil)
	req.Header.Set("X-User-Id", "encoder07")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "encoder09", seen)
}

func TestGatewayAddr(t *testing.T) {
	assert.Equal(t, ":8081", NewGatewayService(nil, nil).(*GatewayService).Addr())
	assert.Equal(t, ":9090", NewGatewayService(map[string]interface{}{"port": 9090}, nil).(*GatewayService).Addr())
	assert.Equal(t, "127.0.0.1:7000", NewGatewayService(map[string]interface{}{"addr": "127.0.0.1:7000"}, nil).(*GatewayService).Addr())
	assert.Error(t, NewGatewayService(nil, nil).Start())
	assert.NoError(t, NewGatewayService(nil, nil).Stop())
}
