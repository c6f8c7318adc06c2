package core

import (
	"context"
	"net/netip"
)

type contextKey string

const (
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
)

// ContextWithClient records the caller's address and user agent for audit
// entries written while serving the request.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// IPAddressFromContext returns the caller's address, if it parses.
func IPAddressFromContext(ctx context.Context) *netip.Addr {
	s, _ := ctx.Value(ctxKeyIPAddress).(string)
	if s == "" {
		return nil
	}
	// RemoteAddr may still carry a port.
	if ap, err := netip.ParseAddrPort(s); err == nil {
		addr := ap.Addr().Unmap()
		return &addr
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	addr = addr.Unmap()
	return &addr
}

// UserAgentFromContext returns the caller's user agent.
func UserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(ctxKeyUserAgent).(string)
	return ua
}
