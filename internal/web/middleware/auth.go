package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// KeyAuthenticator resolves keys issued through the API.
type KeyAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, key string) (store.APIKey, error)
}

// Principal is the caller a request acts for.
type Principal struct {
	UserID int64
	// KeyID is the issued key used, or 0 for static operator keys and
	// unauthenticated access.
	KeyID       int64
	Permissions []string
}

// Can reports whether the principal holds perm. Static keys hold every
// permission, as does admin.
func (p Principal) Can(perm string) bool {
	if p.KeyID == 0 {
		return true
	}
	return slices.Contains(p.Permissions, core.PermissionAdmin) || slices.Contains(p.Permissions, perm)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by APIKeyAuth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// APIKeyAuth returns middleware that authenticates the X-API-Key header
// (or an Authorization bearer token).
//
// Static keys from cfg act for the user named in X-User-ID, falling back
// to cfg.DefaultUserID. Issued keys act for their owner and X-User-ID is
// ignored. If RequireAPIKey is false, requests without a key act for the
// default user. Writes need the write permission.
func APIKeyAuth(cfg *config.SecurityConfig, keys KeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := requestKey(r)

			var p Principal
			switch {
			case apiKey == "" && !cfg.RequireAPIKey:
				uid, ok := headerUserID(r, cfg.DefaultUserID)
				if !ok {
					writeAuthError(w, http.StatusBadRequest, "invalid X-User-ID header", "AUTH_BAD_USER")
					return
				}
				p = Principal{UserID: uid}

			case apiKey == "":
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return

			case isValidAPIKey(apiKey, cfg.APIKeys):
				uid, ok := headerUserID(r, cfg.DefaultUserID)
				if !ok {
					writeAuthError(w, http.StatusBadRequest, "invalid X-User-ID header", "AUTH_BAD_USER")
					return
				}
				p = Principal{UserID: uid}

			default:
				if keys == nil {
					rejectKey(w, r)
					return
				}
				k, err := keys.AuthenticateAPIKey(r.Context(), apiKey)
				if errors.Is(err, core.ErrUnauthorized) {
					rejectKey(w, r)
					return
				}
				if err != nil {
					slog.Error("auth: key lookup failed", "path", r.URL.Path, "error", err)
					writeAuthError(w, http.StatusServiceUnavailable, "authentication unavailable", "AUTH_UNAVAILABLE")
					return
				}
				p = Principal{UserID: k.UserID, KeyID: k.ID, Permissions: k.Permissions}
			}

			if isWrite(r.Method) && !p.Can(core.PermissionWrite) {
				writeAuthError(w, http.StatusForbidden, "API key is read-only", "AUTH_FORBIDDEN")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func rejectKey(w http.ResponseWriter, r *http.Request) {
	slog.Warn("auth: invalid API key",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
}

func requestKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func headerUserID(r *http.Request, fallback int64) (int64, bool) {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return fallback, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}

// isValidAPIKey checks if the provided key matches any configured key.
// Uses constant-time comparison and checks ALL keys to prevent timing attacks.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}
