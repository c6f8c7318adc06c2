package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/logging"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// maxAuditExport caps the rows of one audit CSV download.
const maxAuditExport = 10000

// auditQuery reads ?batchId=, ?recordId=, ?action= and ?limit=.
func auditQuery(r *http.Request, defaultLimit int) (core.AuditQuery, error) {
	batchID, err := parseInt64Param(r, "batchId")
	if err != nil {
		return core.AuditQuery{}, err
	}
	recordID, err := parseInt64Param(r, "recordId")
	if err != nil {
		return core.AuditQuery{}, err
	}
	return core.AuditQuery{
		BatchID:  batchID,
		RecordID: recordID,
		Action:   r.URL.Query().Get("action"),
		Limit:    parseIntParam(r, "limit", defaultLimit),
	}, nil
}

// handleAuditLog returns the caller's audit entries, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	q, err := auditQuery(r, store.DefaultAuditLimit)
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	entries, err := s.service.ListAudit(r.Context(), uid, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, entries)
}

// handleAuditLogExport downloads the same entries as CSV.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	q, err := auditQuery(r, maxAuditExport)
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	q.Limit = min(q.Limit, maxAuditExport)

	entries, err := s.service.ListAudit(r.Context(), uid, q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	header := []string{
		"ID", "Timestamp", "Action", "Entity Type", "Entity ID",
		"Batch ID", "Record ID", "IP Address", "User Agent",
		"Previous Value", "New Value",
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		ip := ""
		if e.IPAddress != nil {
			ip = e.IPAddress.String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Action,
			e.EntityType,
			formatOptionalID(e.EntityID),
			formatOptionalID(e.BatchID),
			formatOptionalID(e.RecordID),
			ip,
			e.UserAgent,
			formatJSONValue(e.PreviousValue),
			formatJSONValue(e.NewValue),
		})
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", spreadsheet.CSV.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := spreadsheet.Write(w, spreadsheet.CSV, header, rows); err != nil {
		logging.FromContext(r.Context()).Warn("audit export interrupted", "error", err)
	}
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func formatJSONValue(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
