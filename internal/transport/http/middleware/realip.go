package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const clientIPKey contextKey = "client_ip"

// RealIP resolves the client address once per request. X-Forwarded-For and
// X-Real-Ip are only believed when the connecting peer is one of trusted
// (IPs or CIDRs); otherwise the peer address is the client.
func RealIP(trusted []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trusted)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey, proxies.clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP is the address recorded on sessions and login audits and used
// as the rate limit key. Without RealIP in the chain it is the peer host.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return peerHost(r)
}

type proxySet []*net.IPNet

func parseProxies(entries []string) proxySet {
	var out proxySet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				slog.Warn("ignoring invalid trusted proxy", "entry", e)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", e, "err", err)
			continue
		}
		out = append(out, n)
	}
	return out
}

func (p proxySet) trusts(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP walks X-Forwarded-For right to left past trusted hops and returns
// the first address a trusted proxy vouched for.
func (p proxySet) clientIP(r *http.Request) string {
	peer := peerHost(r)
	if !p.trusts(peer) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			client = hop
			if !p.trusts(hop) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); net.ParseIP(xr) != nil {
		return xr
	}
	return peer
}

func peerHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
