package web

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

func multipartUpload(t *testing.T, srv *Server, fileName string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/batches", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", staticKey)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleUpload(t *testing.T) {
	svc := newStub()
	var got core.UploadRequest
	svc.upload = func(req core.UploadRequest) (core.UploadResult, error) {
		got = req
		return core.UploadResult{BatchID: 3, RecordCount: 2, FileURL: "/api/files/uploads/7/x.csv"}, nil
	}
	srv := newTestServer(t, svc, nil)

	csvData := []byte("Name,Phone\njohn,91234567\njane,81234567\n")
	rec := multipartUpload(t, srv, "contacts.csv", csvData, map[string]string{"region": "malaysia"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"batchId":3,"recordCount":2,"fileUrl":"/api/files/uploads/7/x.csv"}`, rec.Body.String())
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "contacts.csv", got.FileName)
	assert.Equal(t, "malaysia", got.Region)
	assert.Equal(t, csvData, got.Data)
}

func TestHandleUpload_Errors(t *testing.T) {
	svc := newStub()
	svc.upload = func(req core.UploadRequest) (core.UploadResult, error) {
		return core.UploadResult{}, core.ErrFileTooLarge
	}
	srv := newTestServer(t, svc, nil)

	rec := multipartUpload(t, srv, "", nil, map[string]string{"region": "singapore"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE001")

	// Larger than the configured 1 KiB limit.
	rec = multipartUpload(t, srv, "big.csv", bytes.Repeat([]byte("a"), 2048), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE002")
}

func TestHandleProcess(t *testing.T) {
	svc := newStub()
	var got core.ProcessRequest
	svc.process = func(req core.ProcessRequest) (store.Job, error) {
		got = req
		return store.Job{ID: 9, BatchID: req.BatchID, Type: store.JobLLMEnhance, Status: store.JobProcessing}, nil
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodPost, "/api/batches/4/process", `{"useLLM":true}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, core.ProcessRequest{UserID: 1, BatchID: 4, UseLLM: true}, got)

	var job store.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, int64(9), job.ID)

	// An empty body means a rule-based pass.
	rec = do(t, srv, http.MethodPost, "/api/batches/4/process", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, got.UseLLM)

	rec = do(t, srv, http.MethodPost, "/api/batches/4/process", `{"useLLM":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcess_Errors(t *testing.T) {
	tests := []struct {
		err        error
		wantCode   int
		retryAfter bool
	}{
		{core.ErrBatchBusy, http.StatusConflict, false},
		{core.ErrTooManyJobs, http.StatusServiceUnavailable, true},
		{core.ErrEnhancementDisabled, http.StatusBadRequest, false},
		{core.ErrBatchNotFound, http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := newStub()
			svc.process = func(core.ProcessRequest) (store.Job, error) { return store.Job{}, tt.err }
			srv := newTestServer(t, svc, nil)

			rec := do(t, srv, http.MethodPost, "/api/batches/4/process", `{}`, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After") != "")
		})
	}
}

func TestHandleListRecords_Filters(t *testing.T) {
	svc := newStub()
	var got store.RecordFilter
	svc.records = func(_, batchID int64, f store.RecordFilter) ([]store.Record, error) {
		got = f
		return []store.Record{{CleanedRecord: cleaning.CleanedRecord{RawRecord: cleaning.RawRecord{ID: 1, BatchID: batchID}}}}, nil
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodGet, "/api/batches/4/records?status=flagged&needsReview=true&limit=20&offset=40", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cleaning.StatusFlagged, got.Status)
	require.NotNil(t, got.NeedsReview)
	assert.True(t, *got.NeedsReview)
	assert.Equal(t, 20, got.Limit)
	assert.Equal(t, 40, got.Offset)

	rec = do(t, srv, http.MethodGet, "/api/batches/4/records", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.NeedsReview)
	assert.Equal(t, store.DefaultRecordLimit, got.Limit)

	rec = do(t, srv, http.MethodGet, "/api/batches/4/records?needsReview=perhaps", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateRecord(t *testing.T) {
	svc := newStub()
	var got core.CleanedPatch
	svc.update = func(_, recordID int64, patch core.CleanedPatch) (store.Record, error) {
		got = patch
		return store.Record{CleanedRecord: cleaning.CleanedRecord{RawRecord: cleaning.RawRecord{ID: recordID}}}, nil
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodPatch, "/api/records/12", `{"phone":"+65 9123 4567","city":"Singapore"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.CleanedPatch{
		cleaning.FieldPhone: "+65 9123 4567",
		cleaning.FieldCity:  "Singapore",
	}, got)
}

func TestHandleBulkApprove(t *testing.T) {
	svc := newStub()
	var got []int64
	svc.bulk = func(_ int64, ids []int64) (int64, error) {
		got = ids
		return int64(len(ids)), nil
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodPost, "/api/records/bulk-approve", `{"ids":[3,4,5]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{3, 4, 5}, got)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())
}

func TestHandleDownload(t *testing.T) {
	svc := newStub()
	var gotKey string
	svc.openFile = func(_ int64, key string) (io.ReadCloser, error) {
		gotKey = key
		if strings.HasPrefix(key, "exports/1/") {
			return io.NopCloser(strings.NewReader("name\nJohn Doe\n")), nil
		}
		return nil, storage.ErrNotFound
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodGet, "/api/files/exports/1/export-contacts-1700000000.csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "exports/1/export-contacts-1700000000.csv", gotKey)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "export-contacts-1700000000.csv")
	assert.Equal(t, "name\nJohn Doe\n", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/files/exports/2/other.csv", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE005")
}

func TestHandleAuditLog(t *testing.T) {
	svc := newStub()
	var got core.AuditQuery
	batchID := int64(4)
	ip := netip.MustParseAddr("10.0.0.8")
	svc.listAudit = func(_ int64, q core.AuditQuery) ([]store.AuditEntry, error) {
		got = q
		return []store.AuditEntry{{
			ID:         1,
			BatchID:    &batchID,
			Action:     "clean",
			EntityType: "batch",
			NewValue:   map[string]any{"errorRecords": 1},
			IPAddress:  &ip,
			CreatedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		}}, nil
	}
	srv := newTestServer(t, svc, nil)

	rec := do(t, srv, http.MethodGet, "/api/audit?batchId=4&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.AuditQuery{BatchID: 4, Limit: 10}, got)
	assert.Contains(t, rec.Body.String(), `"action":"clean"`)

	rec = do(t, srv, http.MethodGet, "/api/audit?recordId=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/audit/export?limit=999999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxAuditExport, got.Limit)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit_log_")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Timestamp", rows[0][1])
	assert.Equal(t, []string{"1", "2026-03-01T09:00:00Z", "clean", "batch", "", "4", "", "10.0.0.8", "", "", `{"errorRecords":1}`}, rows[1])
}

func TestHandleCreateAPIKey(t *testing.T) {
	svc := newStub()
	var got core.CreateAPIKeyRequest
	svc.createKey = func(req core.CreateAPIKeyRequest) (core.CreatedAPIKey, error) {
		got = req
		return core.CreatedAPIKey{APIKey: store.APIKey{ID: 5, Name: req.Name}, Key: "sdc_secret"}, nil
	}
	srv := newTestServer(t, svc, nil)

	body := `{"name":"ci","permissions":["read"]}`

	rec := do(t, srv, http.MethodPost, "/api/api-keys", body, map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, []string{"read"}, got.Permissions)
	assert.Contains(t, rec.Body.String(), `"key":"sdc_secret"`)

	// Write permission is not enough to mint keys.
	rec = do(t, srv, http.MethodPost, "/api/api-keys", body, map[string]string{"X-API-Key": issuedKey})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH003")
}
