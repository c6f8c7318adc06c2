package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds request bodies other than uploads.
const maxJSONBody = 1 << 20

// parseID parses a positive integer URL parameter.
func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseInt64Param parses an optional positive id in the query string.
// It returns 0 when the parameter is absent.
func parseInt64Param(r *http.Request, name string) (int64, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, val)
	}
	return id, nil
}

// parseBoolParam parses an optional boolean query parameter.
func parseBoolParam(r *http.Request, name string) (*bool, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, val)
	}
	return &b, nil
}

// decodeJSON decodes a bounded JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// pathIDs resolves the caller and the {id} URL parameter together, which
// nearly every handler needs.
func (s *Server) pathIDs(w http.ResponseWriter, r *http.Request) (uid, id int64, ok bool) {
	uid, err := userID(r)
	if err != nil {
		s.respondError(w, r, err)
		return 0, 0, false
	}
	id, err = parseID(r, "id")
	if err != nil {
		s.badRequest(w, r, err.Error())
		return 0, 0, false
	}
	return uid, id, true
}

// caller resolves the acting user or writes a 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, err := userID(r)
	if err != nil {
		s.respondError(w, r, err)
		return 0, false
	}
	return uid, true
}
