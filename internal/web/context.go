package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/web/middleware"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	if addr, ok := middleware.ClientAddr(r.RemoteAddr); ok {
		ip = addr.String()
	}
	return core.ContextWithClient(ctx, ip, r.Header.Get("User-Agent"))
}

func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

// userID returns the acting user set by the auth middleware.
func userID(r *http.Request) (int64, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.UserID <= 0 {
		return 0, core.ErrUnauthorized
	}
	return p.UserID, nil
}
