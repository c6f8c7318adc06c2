package web

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/logging"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// handleListRecords returns a page of records, filtered by ?status=,
// ?needsReview=, ?limit= and ?offset=.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	needsReview, err := parseBoolParam(r, "needsReview")
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	records, err := s.service.Records(r.Context(), uid, id, store.RecordFilter{
		Status:      cleaning.Status(r.URL.Query().Get("status")),
		NeedsReview: needsReview,
		Limit:       parseIntParam(r, "limit", store.DefaultRecordLimit),
		Offset:      parseIntParam(r, "offset", 0),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	stats, err := s.service.RecordStats(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	records, err := s.service.ReviewQueue(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	detail, err := s.service.Record(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	severity := cleaning.Severity(r.URL.Query().Get("severity"))
	issues, err := s.service.Issues(r.Context(), uid, id, severity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, issues)
}

func (s *Server) handleIssueStats(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	stats, err := s.service.IssueStats(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

// exportRequest is the body of POST /batches/{id}/export.
type exportRequest struct {
	Format          string `json:"format"`
	IncludeOriginal bool   `json:"includeOriginal"`
	OnlyApproved    bool   `json:"onlyApproved"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	res, err := s.service.ExportBatch(r.Context(), core.ExportRequest{
		UserID:          uid,
		BatchID:         id,
		Format:          req.Format,
		IncludeOriginal: req.IncludeOriginal,
		OnlyApproved:    req.OnlyApproved,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// handleDownload streams an uploaded or exported file owned by the caller.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "*")

	rc, err := s.service.OpenFile(r.Context(), uid, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if ft, err := spreadsheet.DetectFileType(key); err == nil {
		contentType = ft.ContentType()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": path.Base(key),
	}))

	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", "key", key, "error", err)
	}
}
