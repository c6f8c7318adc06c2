package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/core"
)

// handleUpdateRecord applies manual corrections. The body maps canonical
// field names to their new cleaned values, e.g. {"phone":"+65 9123 4567"}.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var body map[string]string
	if err := decodeJSON(w, r, &body); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	patch := make(core.CleanedPatch, len(body))
	for k, v := range body {
		patch[cleaning.Field(k)] = v
	}

	rec, err := s.service.UpdateRecord(r.Context(), uid, id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleApproveRecord(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.service.ApproveRecord(r.Context(), uid, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "status": cleaning.StatusApproved})
}

func (s *Server) handleRejectRecord(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.service.RejectRecord(r.Context(), uid, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "status": cleaning.StatusRejected})
}

// bulkRequest is the body of the bulk review endpoints.
type bulkRequest struct {
	IDs []int64 `json:"ids"`
}

// bulkResponse reports how many records a bulk action changed.
type bulkResponse struct {
	Updated int64 `json:"updated"`
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	s.bulkReview(w, r, s.service.BulkApprove)
}

func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	s.bulkReview(w, r, s.service.BulkReject)
}

func (s *Server) bulkReview(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID int64, ids []int64) (int64, error)) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	n, err := apply(r.Context(), uid, req.IDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, bulkResponse{Updated: n})
}

// handleAcceptCleaned approves every cleaned record of the batch.
func (s *Server) handleAcceptCleaned(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	n, err := s.service.AcceptAllCleaned(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, bulkResponse{Updated: n})
}

func (s *Server) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.service.ResolveIssue(r.Context(), uid, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"id": id, "resolved": true})
}
