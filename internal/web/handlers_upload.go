package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/JonMunkholm/addrclean/internal/core"
)

// multipartOverhead is allowed on top of the file size for form fields
// and boundaries.
const multipartOverhead = 1 << 20

// defaultBatchLimit caps GET /batches when no limit is given.
const defaultBatchLimit = 50

// handleUpload accepts a multipart spreadsheet upload (field "file", with
// optional "region" and "fileType") and creates a pending batch.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.UploadBatch(r.Context(), core.UploadRequest{
		UserID:   uid,
		FileName: header.Filename,
		Data:     data,
		Region:   r.FormValue("region"),
		FileType: r.FormValue("fileType"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, res)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	batches, err := s.service.Batches(r.Context(), uid, parseIntParam(r, "limit", defaultBatchLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, batches)
}

func (s *Server) handleBatchStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	stats, err := s.service.BatchStats(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	batch, err := s.service.Batch(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, batch)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteBatch(r.Context(), uid, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processRequest is the body of POST /batches/{id}/process.
type processRequest struct {
	UseLLM bool `json:"useLLM"`
}

// handleProcess starts cleaning a batch. The job runs after the response
// is written; poll GET /jobs/{id} for progress.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	job, err := s.service.ProcessBatch(r.Context(), core.ProcessRequest{
		UserID:  uid,
		BatchID: id,
		UseLLM:  req.UseLLM,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, job)
}

func (s *Server) handleBatchJobs(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	jobs, err := s.service.BatchJobs(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, jobs)
}

func (s *Server) handleActiveJobs(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	jobs, err := s.service.ActiveJobs(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	job, err := s.service.Job(r.Context(), uid, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, job)
}
