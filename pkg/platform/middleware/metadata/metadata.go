package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"autoshield/pkg/requestcontext"
)

// Resolver determines the client IP of a request. Forwarding headers are
// honoured only when the direct peer is one of the trusted proxies, so a
// client talking to the server directly cannot choose its own address.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver builds a Resolver trusting the given proxies, each a CIDR
// ("10.0.0.0/8") or a single address ("192.0.2.10").
func NewResolver(proxies []string) (*Resolver, error) {
	r := &Resolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			r.trusted = append(r.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return r, nil
}

// Middleware adds the client IP and User-Agent to the request context.
// Apply it early in the chain.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := requestcontext.WithClientMetadata(req.Context(), r.ClientIP(req), req.UserAgent())
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// ClientIP returns the peer address, or when the peer is a trusted proxy the
// nearest untrusted hop in X-Forwarded-For (falling back to X-Real-IP).
func (r *Resolver) ClientIP(req *http.Request) string {
	peer := remoteHost(req.RemoteAddr)
	if !r.isTrusted(peer) {
		return peer
	}

	if xff := req.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		// Walk from the proxy closest to us back towards the client.
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !r.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (r *Resolver) isTrusted(ip string) bool {
	if r == nil || len(r.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(addr string) string {
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

var direct = &Resolver{}

// ClientMetadata is Middleware for a server with no proxy in front of it:
// forwarding headers are ignored.
func ClientMetadata(next http.Handler) http.Handler {
	return direct.Middleware(next)
}

// ClientIPFromRequest returns the peer address of r, ignoring forwarding headers.
func ClientIPFromRequest(r *http.Request) string {
	return direct.ClientIP(r)
}
