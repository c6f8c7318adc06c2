package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/store"
	"github.com/JonMunkholm/addrclean/internal/web/middleware"
)

// requireAdmin rejects issued keys without the admin permission. Static
// operator keys and unauthenticated local use pass.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	p, _ := middleware.PrincipalFromContext(r.Context())
	if !p.Can(core.PermissionAdmin) {
		respondErrorJSON(w, core.UserMessage{
			Code:    "AUTH003",
			Message: "This API key cannot manage API keys",
			Action:  "Use a key with the admin permission",
		}, http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok {
		return
	}
	keys, err := s.service.APIKeys(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if keys == nil {
		keys = []store.APIKey{}
	}
	writeJSON(w, keys)
}

// createAPIKeyRequest is the body of POST /api-keys.
type createAPIKeyRequest struct {
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// handleCreateAPIKey issues a key. The secret is in the response only.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.caller(w, r)
	if !ok || !s.requireAdmin(w, r) {
		return
	}
	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	created, err := s.service.CreateAPIKey(r.Context(), core.CreateAPIKeyRequest{
		UserID:      uid,
		Name:        req.Name,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.pathIDs(w, r)
	if !ok || !s.requireAdmin(w, r) {
		return
	}
	if err := s.service.RevokeAPIKey(r.Context(), uid, id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
