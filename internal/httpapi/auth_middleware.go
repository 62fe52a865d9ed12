package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"accountd/internal/auth"
	"accountd/internal/domain"
)

// authedHandler receives the verified claims of the caller explicitly.
type authedHandler func(w http.ResponseWriter, r *http.Request, claims domain.SessionClaims)

func (a *api) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			writeUnauthenticated(w)
			return
		}

		claims, err := a.authSvc.Authenticate(r.Context(), token)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}

		next(w, r, claims)
	}
}

// clientIP is the peer address, or the X-Forwarded-For client when the peer
// is a trusted proxy. The header is read right to left and trusted hops are
// skipped, so entries prepended by the client are never used.
func (a *api) clientIP(r *http.Request) string {
	return clientIP(r, a.trustedProxies)
}

func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		peer = host
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		peer = hop
	}
	return peer
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
